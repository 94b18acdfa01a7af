package creds

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func plainToken(username string, issuedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", username, uuid.New(), issuedAt.UnixMilli())
}

func encodedToken(username string, issuedAt time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(plainToken(username, issuedAt)))
}

func TestParseTokenPlain(t *testing.T) {
	now := time.Now()
	claims, err := ParseToken(plainToken("zhangsan", now))
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Username != "zhangsan" {
		t.Errorf("Username = %q, want zhangsan", claims.Username)
	}
	if claims.Encoded {
		t.Error("Encoded = true, want false for plain token")
	}
	if claims.MaxAge() != 24*time.Hour {
		t.Errorf("MaxAge = %v, want 24h", claims.MaxAge())
	}
}

func TestParseTokenEncoded(t *testing.T) {
	claims, err := ParseToken(encodedToken("lisi", time.Now()))
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Username != "lisi" {
		t.Errorf("Username = %q, want lisi", claims.Username)
	}
	if !claims.Encoded {
		t.Error("Encoded = false, want true for base64 token")
	}
	if claims.MaxAge() != time.Hour {
		t.Errorf("MaxAge = %v, want 1h", claims.MaxAge())
	}
}

func TestParseTokenMalformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separators", "justonetoken"},
		{"two parts", "user:abc"},
		{"four parts", "user:abc:123:extra"},
		{"empty username", ":abc:123"},
		{"empty uuid", "user::123"},
		{"non-numeric timestamp", "user:abc:notanumber"},
		// Decodes as base64 but the decoded bytes are not a triple;
		// there is no fallback to the plain interpretation.
		{"base64 garbage", base64.StdEncoding.EncodeToString([]byte("no triple here"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token); !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("ParseToken(%q) error = %v, want ErrTokenMalformed", tt.token, err)
			}
		})
	}
}

func TestValidateTokenExpiryPolicies(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"plain fresh", plainToken("u", now.Add(-time.Minute)), false},
		{"plain 23h old", plainToken("u", now.Add(-23*time.Hour)), false},
		{"plain 25h old", plainToken("u", now.Add(-25*time.Hour)), true},
		{"encoded fresh", encodedToken("u", now.Add(-time.Minute)), false},
		// The same age passes plain but fails encoded: the two forms
		// deliberately keep their divergent policies.
		{"encoded 2h old", encodedToken("u", now.Add(-2*time.Hour)), true},
		{"plain 2h old", plainToken("u", now.Add(-2*time.Hour)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(tt.token, now)
			if tt.wantErr && !errors.Is(err, ErrTokenExpired) {
				t.Errorf("ValidateToken() error = %v, want ErrTokenExpired", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateToken() error = %v, want nil", err)
			}
		})
	}
}

func TestValidateProfileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "default", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"empty", "", true},
		{"uppercase", "Default", true},
		{"space", "my profile", true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProfileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

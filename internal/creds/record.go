package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is the persisted credential record for an authenticated user,
// the file-backed analogue of the web client's local session entry.
type Record struct {
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname,omitempty"`
	Email        string `json:"email,omitempty"`
	Avatar       string `json:"avatar,omitempty"`
	Signature    string `json:"signature,omitempty"`
	Status       string `json:"status,omitempty"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	SavedAt      int64  `json:"savedAt"`
}

// Store holds the current credential record for a profile and persists
// it under the profile directory. It satisfies the token/user sources
// consumed by the session manager, router and REST client.
type Store struct {
	mu      sync.RWMutex
	profile string
	logger  *zap.Logger
	record  *Record
}

// NewStore creates a credential store for the given profile. No disk
// access happens until Restore or Save.
func NewStore(profile string, logger *zap.Logger) *Store {
	return &Store{profile: profile, logger: logger}
}

// Restore loads and validates the persisted record. An absent file,
// unreadable record, or expired token leaves the store empty; an invalid
// record is removed from disk like the web client clears its stale entry.
func (s *Store) Restore(now time.Time) error {
	path := RecordPath(s.profile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.ErrNotExist
		}
		return fmt.Errorf("read credentials: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("credential record unreadable, clearing", zap.Error(err))
		_ = os.Remove(path)
		return fmt.Errorf("decode credentials: %w", err)
	}

	claims, err := ValidateToken(rec.Token, now)
	if err != nil {
		s.logger.Warn("stored token rejected, clearing", zap.Error(err))
		_ = os.Remove(path)
		return fmt.Errorf("validate token: %w", err)
	}

	policy := "plain/24h"
	if claims.Encoded {
		policy = "base64/1h"
	}
	s.logger.Info("credentials restored",
		zap.String("username", rec.Username),
		zap.String("expiry_policy", policy),
	)

	s.mu.Lock()
	s.record = &rec
	s.mu.Unlock()
	return nil
}

// Save persists the record and makes it current.
func (s *Store) Save(rec *Record) error {
	if err := EnsureProfileDir(s.profile); err != nil {
		return err
	}
	rec.SavedAt = time.Now().UnixMilli()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(RecordPath(s.profile), data, 0600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	s.mu.Lock()
	s.record = rec
	s.mu.Unlock()
	return nil
}

// Clear removes the persisted record and empties the store (logout).
func (s *Store) Clear() error {
	s.mu.Lock()
	s.record = nil
	s.mu.Unlock()
	err := os.Remove(RecordPath(s.profile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Current returns a copy of the current record, or nil when logged out.
func (s *Store) Current() *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil
	}
	rec := *s.record
	return &rec
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return ""
	}
	return s.record.Token
}

// UserID returns the authenticated user id, or 0 when logged out.
func (s *Store) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return 0
	}
	return s.record.UserID
}

// wirectl manages wirechat accounts and credentials from the command
// line. It talks straight to the backend's REST API and to the local
// credential store; the realtime session itself is the daemon's job.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tbaldin/wirechat/internal/config"
	"github.com/tbaldin/wirechat/internal/creds"
	"github.com/tbaldin/wirechat/internal/rest"
)

var profileFlag string

func main() {
	root := &cobra.Command{
		Use:           "wirectl",
		Short:         "Manage wirechat accounts and credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")

	root.AddCommand(
		loginCmd(),
		registerCmd(),
		refreshCmd(),
		logoutCmd(),
		statusCmd(),
		checkUsernameCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env resolves the profile and builds the pieces every command needs.
func env() (string, *creds.Store, *rest.Client, error) {
	profile := creds.ResolveProfile(profileFlag)
	if err := creds.ValidateProfileName(profile); err != nil {
		return "", nil, nil, err
	}
	cfg, err := config.Load(creds.ConfigPath())
	if err != nil {
		return "", nil, nil, err
	}
	store := creds.NewStore(profile, zap.NewNop())
	client := rest.NewClient(cfg.ServerURL, store, zap.NewNop())
	return profile, store, client, nil
}

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func saveLoginResult(store *creds.Store, res rest.LoginResult) error {
	return store.Save(&creds.Record{
		UserID:       res.User.ID,
		Username:     res.User.Username,
		Nickname:     res.User.Nickname,
		Email:        res.User.Email,
		Avatar:       res.User.Avatar,
		Signature:    res.User.Signature,
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		SavedAt:      time.Now().UnixMilli(),
	})
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Authenticate and store credentials for the profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, store, client, err := env()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()

			res, err := client.Login(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := saveLoginResult(store, res); err != nil {
				return err
			}
			fmt.Printf("logged in as %s (user %d) on profile %q\n", res.User.Username, res.User.ID, profile)
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var nickname, email string
	cmd := &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Create an account and store its credentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, store, client, err := env()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()

			res, err := client.Register(ctx, rest.RegisterRequest{
				Username: args[0],
				Password: args[1],
				Nickname: nickname,
				Email:    email,
			})
			if err != nil {
				return err
			}
			if err := saveLoginResult(store, res); err != nil {
				return err
			}
			fmt.Printf("registered %s (user %d) on profile %q\n", res.User.Username, res.User.ID, profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, client, err := env()
			if err != nil {
				return err
			}
			if err := store.Restore(time.Now()); err != nil {
				return fmt.Errorf("no usable credentials: %w", err)
			}
			rec := store.Current()
			if rec.RefreshToken == "" {
				return errors.New("stored record has no refresh token")
			}
			ctx, cancel := cmdContext()
			defer cancel()

			res, err := client.RefreshToken(ctx, rec.RefreshToken)
			if err != nil {
				return err
			}
			rec.Token = res.Token
			rec.RefreshToken = res.RefreshToken
			rec.SavedAt = time.Now().UnixMilli()
			if err := store.Save(rec); err != nil {
				return err
			}
			fmt.Println("token refreshed")
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the profile's stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, store, _, err := env()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Printf("credentials cleared for profile %q\n", profile)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the profile's credential state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, store, _, err := env()
			if err != nil {
				return err
			}
			fmt.Printf("Profile: %s\n", profile)
			if err := store.Restore(time.Now()); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Println("Auth:    logged out")
					return nil
				}
				fmt.Printf("Auth:    invalid (%v)\n", err)
				return nil
			}
			rec := store.Current()
			claims, err := creds.ValidateToken(rec.Token, time.Now())
			if err != nil {
				fmt.Printf("Auth:    token invalid (%v)\n", err)
				return nil
			}
			expires := claims.IssuedAt.Add(claims.MaxAge())
			fmt.Printf("User:    %s (%d)\n", rec.Username, rec.UserID)
			fmt.Printf("Auth:    token valid until %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
}

func checkUsernameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-username <username>",
		Short: "Check whether a username is still available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, client, err := env()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext()
			defer cancel()

			available, err := client.CheckUsername(ctx, args[0])
			if err != nil {
				return err
			}
			if available {
				fmt.Printf("%s is available\n", args[0])
			} else {
				fmt.Printf("%s is taken\n", args[0])
			}
			return nil
		},
	}
}

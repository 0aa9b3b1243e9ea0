package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/pbkit/client"
	"github.com/kbukum/pbkit/logger"
)

var (
	loginPassword   string
	loginCollection string
	loginAdmin      bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (default $PBTAIL_PASSWORD)")
	loginCmd.Flags().StringVarP(&loginCollection, "collection", "c", "users", "auth collection to sign in to")
	loginCmd.Flags().BoolVar(&loginAdmin, "admin", false, "sign in as an admin")
}

var loginCmd = &cobra.Command{
	Use:   "login <identity>",
	Short: "Sign in and save the token for later commands",
	Long:  "Sign in with an email or username and password. The token is saved to the session file and sent by watch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Init(cfg.Logging)

		password := loginPassword
		if password == "" {
			password = os.Getenv("PBTAIL_PASSWORD")
		}
		path, err := sessionPath(cfg.Session)
		if err != nil {
			return err
		}

		sess, err := login(cmd.Context(), cfg, args[0], password, loginCollection, loginAdmin)
		if err != nil {
			return err
		}
		if err := saveSession(path, sess); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Logged in to %s as %s\n", cfg.Client.BaseURL, args[0])
		if sess.Auth.Expires != "" {
			fmt.Fprintf(out, "Token expires %s\n", sess.Auth.Expires)
		}
		fmt.Fprintf(out, "Session saved to %s\n", path)
		return nil
	},
}

// login signs in and returns the session to save.
func login(ctx context.Context, cfg *Config, identity, password, collection string, admin bool) (*Session, error) {
	c, err := client.New(cfg.Client)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var raw json.RawMessage
	if admin {
		collection = "admins"
		res, err := client.Admins(c).AuthWithPassword(ctx, identity, password)
		if err != nil {
			return nil, err
		}
		raw = res.Raw
	} else {
		res, err := client.NewCollection[json.RawMessage](c, collection, nil).AuthWithPassword(ctx, identity, password)
		if err != nil {
			return nil, err
		}
		raw = res.Raw
	}

	store := c.AuthStore()
	sess := &Session{Auth: SessionAuth{
		BaseURL:    cfg.Client.BaseURL,
		Collection: collection,
		Admin:      admin,
		Token:      store.Token(),
		Record:     string(raw),
	}}
	if exp, ok := store.Expiry(); ok {
		sess.Auth.Expires = exp.UTC().Format(time.RFC3339)
	}
	return sess, nil
}

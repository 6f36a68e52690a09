package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gallery/internal/credentials"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Remember upload credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("GALLERY_PASSWORD")
			if passwordStdin {
				secret, err := readSecret(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = secret
			}
			creds := credentials.Credentials{Username: username, Password: password}
			if !creds.Complete() {
				return errors.New("username and password are required (use --password-stdin or GALLERY_PASSWORD)")
			}
			return ctx.withCredentials(func(store *credentials.Store) error {
				if err := store.Save(cmd.Context(), creds, true); err != nil {
					return fmt.Errorf("save credentials: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Credentials for %s saved\n", creds.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Upload username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget remembered upload credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCredentials(func(store *credentials.Store) error {
				if err := store.Forget(cmd.Context()); err != nil {
					return fmt.Errorf("forget credentials: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed")
				return nil
			})
		},
	}
}

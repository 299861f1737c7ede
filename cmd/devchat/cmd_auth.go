package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <username> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		u, err := client().Register(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s, now run: devchat login %s <password>\n", u.Username, u.Username)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Sign in and store the token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		res, err := client().Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		cfg.Token = res.AccessToken
		cfg.Username = res.Username
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", res.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = ""
		cfg.Username = ""
		return cfg.Save(configPath)
	},
}

package main

import (
	"fmt"
	"text/tabwriter"

	"devnet/internal/user"

	"github.com/spf13/cobra"
)

var followingOnly bool

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		c := client()
		var users []user.User
		var err error
		if followingOnly {
			users, err = c.ListUsers(ctx)
		} else {
			users, err = c.AllUsers(ctx)
		}
		if err != nil {
			return err
		}
		printUsers(cmd, users)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search users by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		users, err := client().SearchUsers(ctx, args[0])
		if err != nil {
			return err
		}
		printUsers(cmd, users)
		return nil
	},
}

var followCmd = &cobra.Command{
	Use:   "follow <username>",
	Short: "Follow a user so you can message them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		return client().Follow(ctx, args[0])
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow <username>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()
		return client().Unfollow(ctx, args[0])
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Show a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		p, err := client().Profile(ctx, args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "user\t%s\n", p.Username)
		fmt.Fprintf(w, "joined\t%s\n", p.CreatedAt.Format("2006-01-02"))
		fmt.Fprintf(w, "followers\t%d\n", p.Followers)
		fmt.Fprintf(w, "following\t%d\n", p.Following)
		fmt.Fprintf(w, "posts\t%d\n", p.Posts)
		fmt.Fprintf(w, "followed by you\t%t\n", p.FollowedByMe)
		return w.Flush()
	},
}

func init() {
	usersCmd.Flags().BoolVar(&followingOnly, "following", false, "Only users you follow")
}

func printUsers(cmd *cobra.Command, users []user.User) {
	for _, u := range users {
		fmt.Fprintln(cmd.OutOrStdout(), u.Username)
	}
}

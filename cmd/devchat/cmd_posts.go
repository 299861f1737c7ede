package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post <text...>",
	Short: "Publish a post to your followers' feeds",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		p, err := client().CreatePost(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "posted #%d\n", p.ID)
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show recent posts from you and the people you follow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		posts, err := client().Feed(ctx)
		if err != nil {
			return err
		}
		for _, p := range posts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  @%s\n  %s\n", p.CreatedAt.Local().Format("Jan 2 15:04"), p.AuthorUsername, p.Content)
		}
		return nil
	},
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailtalk/trailtalk/internal/comments"
)

var (
	commentAnonymous bool
	commentAnonName  string
)

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Manage a post's comment thread",
}

var commentsListCmd = &cobra.Command{
	Use:   "list <post-id>",
	Short: "List a post's comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, sess := newClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		thread := comments.NewThread(client, sess, args[0])
		defer thread.Close()
		if err := thread.Fetch(ctx); err != nil {
			return err
		}

		list := thread.Comments()
		if output == "json" {
			printJSON(list)
			return nil
		}
		if len(list) == 0 {
			fmt.Println("No comments.")
			return nil
		}
		for _, c := range list {
			fmt.Printf("%s  %s  %s\n", c.ID, c.DisplayName(), c.CreatedAt.Format(time.RFC822))
			fmt.Printf("    %s\n", c.Content)
		}
		return nil
	},
}

var commentsAddCmd = &cobra.Command{
	Use:   "add <post-id> <content>",
	Short: "Add a comment to a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		client, sess := newClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		thread := comments.NewThread(client, sess, args[0])
		defer thread.Close()

		res := thread.Add(ctx, args[1], commentAnonymous, commentAnonName)
		if res.Err != nil {
			return res.Err
		}
		if output == "json" {
			printJSON(res.Comment)
			return nil
		}
		fmt.Printf("Comment added: %s\n", res.Comment.ID)
		return nil
	},
}

var commentsDeleteCmd = &cobra.Command{
	Use:   "delete <post-id> <comment-id>",
	Short: "Delete your comment from a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		client, sess := newClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		thread := comments.NewThread(client, sess, args[0])
		defer thread.Close()

		res := thread.Delete(ctx, args[1])
		if res.Err != nil {
			return res.Err
		}
		fmt.Println("Comment deleted.")
		return nil
	},
}

func init() {
	commentsAddCmd.Flags().BoolVar(&commentAnonymous, "anonymous", false, "Post the comment anonymously")
	commentsAddCmd.Flags().StringVar(&commentAnonName, "anonymous-name", "", "Display name for an anonymous comment")

	commentsCmd.AddCommand(commentsListCmd)
	commentsCmd.AddCommand(commentsAddCmd)
	commentsCmd.AddCommand(commentsDeleteCmd)
}

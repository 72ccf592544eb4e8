package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailtalk/trailtalk/internal/gateway"
	"github.com/trailtalk/trailtalk/internal/models"
	"github.com/trailtalk/trailtalk/internal/profiles"
)

var (
	postCategory  string
	postAnonymous bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create posts on the campus feed",
}

var postCreateCmd = &cobra.Command{
	Use:   "create <content>",
	Short: "Create a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		if !models.ValidCategory(postCategory) {
			return fmt.Errorf("unknown category %q (valid: %s)",
				postCategory, strings.Join(models.Categories, ", "))
		}

		client, sess := newClient()
		defer client.Close()
		uid, ok := sess.UserID()
		if !ok {
			return fmt.Errorf("token carries no user id")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		rows, err := client.Insert(ctx, gateway.TablePosts, []gateway.Row{{
			"author_id":       uid,
			"content":         args[0],
			"category":        postCategory,
			"is_anonymous":    postAnonymous,
			"author_initials": authorInitials(ctx, client, uid),
		}})
		if err != nil {
			return err
		}

		var created models.Post
		if len(rows) > 0 {
			if err := gateway.Decode(rows[0], &created); err != nil {
				return err
			}
		}
		if output == "json" {
			printJSON(created)
			return nil
		}
		fmt.Printf("Post created: %s\n", created.ID)
		return nil
	},
}

// authorInitials captures the display string stored on the post at creation
// time: initials for anonymous posts, the best display name otherwise. A
// failed profile lookup degrades to an empty string.
func authorInitials(ctx context.Context, client gateway.Gateway, uid string) string {
	p, err := profiles.NewService(client, nil).Get(ctx, uid)
	if err != nil {
		return ""
	}
	if postAnonymous {
		return p.Initials()
	}
	return p.BestDisplayName()
}

func init() {
	postCreateCmd.Flags().StringVar(&postCategory, "category", models.CategoryGeneral, "Post category")
	postCreateCmd.Flags().BoolVar(&postAnonymous, "anonymous", false, "Post anonymously")

	postCmd.AddCommand(postCreateCmd)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailtalk/trailtalk/internal/feed"
)

var feedTab string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the campus feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, sess := newClient()
		defer client.Close()

		tab := feed.TabForYou
		if feedTab == "following" {
			tab = feed.TabFollowing
		}

		agg := feed.NewAggregator(client, sess)
		defer agg.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		agg.Refresh(ctx)

		posts := agg.Posts(tab)
		if output == "json" {
			printJSON(posts)
			return nil
		}

		if len(posts) == 0 {
			fmt.Println("No posts.")
			return nil
		}
		for _, p := range posts {
			name := p.AuthorInitials
			if !p.IsAnonymous && p.Author != nil {
				name = p.Author.BestDisplayName()
			}
			fmt.Printf("%s  [%s] %s\n", p.ID, p.Category, name)
			fmt.Printf("    %s\n", p.Content)
			fmt.Printf("    ♥ %d  💬 %d  ↻ %d  ⌘ %d   %s\n\n",
				p.LikesCount, p.CommentsCount, p.RepostsCount, p.BookmarksCount,
				p.CreatedAt.Format(time.RFC822))
		}
		return nil
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedTab, "tab", "forYou", "Feed tab: forYou or following")
}

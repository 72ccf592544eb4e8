package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailtalk/trailtalk/internal/interaction"
)

var likeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Toggle a like on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], func(ctx context.Context, s *interaction.Store) error {
			return s.ToggleLike(ctx)
		})
	},
}

var repostCmd = &cobra.Command{
	Use:   "repost <post-id>",
	Short: "Toggle a repost on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], func(ctx context.Context, s *interaction.Store) error {
			return s.ToggleRepost(ctx)
		})
	},
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <post-id>",
	Short: "Toggle a bookmark on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], func(ctx context.Context, s *interaction.Store) error {
			return s.ToggleBookmark(ctx)
		})
	},
}

func runToggle(cmd *cobra.Command, postID string, toggle func(context.Context, *interaction.Store) error) error {
	if err := requireToken(); err != nil {
		return err
	}
	client, sess := newClient()
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store := interaction.NewStore(client, sess, postID)
	defer store.Close()
	store.Initialize(ctx)

	if err := toggle(ctx, store); err != nil {
		return err
	}

	st := store.State()
	if output == "json" {
		printJSON(st)
		return nil
	}
	fmt.Printf("liked=%t reposted=%t bookmarked=%t\n", st.IsLiked, st.IsReposted, st.IsBookmarked)
	fmt.Printf("♥ %d  💬 %d  ↻ %d  ⌘ %d\n", st.LikesCount, st.CommentsCount, st.RepostsCount, st.BookmarksCount)
	return nil
}

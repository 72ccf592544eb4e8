package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trailtalk/trailtalk/internal/search"
)

var searchCategory string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search profiles and communities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := newClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		svc := search.NewService(client)
		defer svc.Close()
		svc.SetCategory(search.Category(searchCategory))

		res := svc.Search(ctx, args[0])
		if output == "json" {
			printJSON(res)
			return nil
		}

		if len(res.Users) == 0 && len(res.Communities) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for _, u := range res.Users {
			fmt.Printf("user       %s  %s (@%s)\n", u.ID, u.Name, u.DisplayUsername)
		}
		for _, c := range res.Communities {
			fmt.Printf("community  %s  %s (%d members)\n", c.ID, c.Name, c.MembersCount)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCategory, "category", "all", "User category: all, students, or faculty")
}

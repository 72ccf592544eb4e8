package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trailtalk/trailtalk/internal/cache"
	"github.com/trailtalk/trailtalk/internal/profiles"
)

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Look up a profile by user id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := newClient()
		defer client.Close()

		dir := profiles.NewService(client, newCache())

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		p, err := dir.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if output == "json" {
			printJSON(p)
			return nil
		}
		fmt.Printf("%s (@%s)\n", p.BestDisplayName(), p.Username)
		if p.StudentID != "" {
			fmt.Printf("  student id: %s\n", p.StudentID)
		}
		if p.SchoolEmail != "" {
			fmt.Printf("  email:      %s\n", p.SchoolEmail)
		}
		if p.UserType != "" {
			fmt.Printf("  type:       %s\n", p.UserType)
		}
		return nil
	},
}

// newCache connects to Redis when cache.redis_host is configured. Lookups
// work without it; a nil cache just means every read hits the gateway.
func newCache() *cache.RedisClient {
	host := viper.GetString("cache.redis_host")
	if host == "" {
		return nil
	}
	rc, err := cache.NewRedisClient(host, viper.GetString("cache.redis_port"), viper.GetString("cache.redis_password"))
	if err != nil {
		fmt.Printf("Warning: redis unavailable, continuing uncached: %v\n", err)
		return nil
	}
	return rc
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a session token from the dev gateway",
	Long: `Mint a session token for the given user id. Only the dev gateway
serves this endpoint; production tokens come from the hosted auth service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := newClient()
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		token, err := client.MintToken(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// TrailTalk CLI drives the client core against a gateway from the terminal:
// browse feeds, toggle interactions, manage comment threads, and search.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	authToken string
	apiURL    string
	output    string
)

var rootCmd = &cobra.Command{
	Use:   "trailtalk",
	Short: "TrailTalk CLI - Browse and interact with the campus feed",
	Long: `TrailTalk CLI provides command-line access to a TrailTalk gateway.
Browse feeds, like and repost, manage comment threads, and search
profiles and communities.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if authToken == "" {
			authToken = os.Getenv("TRAILTALK_TOKEN")
		}
		if apiURL == "" {
			apiURL = viper.GetString("api.base_url")
		}
		if output == "" {
			output = viper.GetString("output.format")
		}
	},
}

func init() {
	initConfig()

	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Session token (defaults to TRAILTALK_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Gateway base URL")
	rootCmd.PersistentFlags().StringVar(&output, "output", "", "Output format: text or json")

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(repostCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(tokenCmd)
}

// initConfig loads defaults and the optional user config file.
func initConfig() {
	viper.SetConfigType("toml")
	viper.SetDefault("api.base_url", "http://localhost:8790")
	viper.SetDefault("output.format", "text")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetConfigFile(filepath.Join(home, ".config", "trailtalk", "config.toml"))
		_ = viper.ReadInConfig()
	}
}

// printJSON renders v as indented JSON on stdout.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

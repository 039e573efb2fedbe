// Package cli provides the command-line interface for mealchat.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mealchat-go/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	userID    string

	// API client, created before every command runs
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mealchat",
	Short: "Meal logging chat client",
	Long: `Mealchat is a chat-based meal logger: send a photo of your meal, get an
AI-generated food description and calorie estimate back, confirm it with
"Yes", and the meal is recorded with a macro breakdown.

This CLI talks to a running mealchat server.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if userID == "" {
			userID = os.Getenv("MEALCHAT_USER")
		}
		if userID == "" {
			return fmt.Errorf("no user id: pass --user or set MEALCHAT_USER")
		}
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default $MEALCHAT_SERVER_URL or http://localhost:8490)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id (default $MEALCHAT_USER)")

	// Add subcommands
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mealsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statsCmd)
}

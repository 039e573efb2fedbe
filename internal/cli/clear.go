package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the conversation's messages",
	Long: `Delete all messages in the conversation. Logged meals are untouched;
only the chat history is cleared.`,
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	deleted, err := apiClient.Clear(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	fmt.Printf("Deleted %d messages.\n", deleted)
	return nil
}

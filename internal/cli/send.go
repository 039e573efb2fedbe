package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendImageURL string

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Send a message or a meal photo",
	Long: `Send a text message or a meal photo URL to the conversation.

Photo messages trigger the analysis pipeline: the server replies with a
food description and calorie estimate, then asks for confirmation. Reply
"Yes" to log the meal.

Examples:
  mealchat send Yes
  mealchat send --image https://example.com/lunch.jpg
  mealchat send What did I eat today?`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendImageURL, "image", "i", "", "URL of a meal photo to analyze")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	text := strings.TrimSpace(strings.Join(args, " "))

	if sendImageURL == "" && text == "" {
		return fmt.Errorf("nothing to send: give text or --image")
	}

	if sendImageURL != "" {
		msg, err := apiClient.SendImage(ctx, userID, sendImageURL)
		if err != nil {
			return fmt.Errorf("send image: %w", err)
		}
		fmt.Printf("Photo sent (%s). The analysis reply arrives in the conversation;\nrun 'mealchat watch' or 'mealchat history' to see it.\n", msg.ID)
		return nil
	}

	if _, err := apiClient.SendText(ctx, userID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Println("Sent.")
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mealchat-go/internal/server"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the conversation",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "max messages")
}

func runHistory(cmd *cobra.Command, args []string) error {
	messages, err := apiClient.History(context.Background(), userID, historyLimit)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println(defaultTheme.hintStyle().Render("No messages yet."))
		return nil
	}

	for _, msg := range messages {
		fmt.Println(renderMessage(defaultTheme, msg))
	}
	return nil
}

// renderMessage formats one message as a chat line.
func renderMessage(theme Theme, msg server.MessageDTO) string {
	label := theme.roleLabel(msg.Role)

	switch msg.Kind {
	case "image":
		url := ""
		if msg.ImageURL != nil {
			url = *msg.ImageURL
		}
		return fmt.Sprintf("%s [photo] %s", label, theme.hintStyle().Render(url))
	case "confirmation":
		return fmt.Sprintf("%s %s %s", label, msg.Text,
			theme.hintStyle().Render(`(reply "Yes" to log this meal)`))
	default:
		line := fmt.Sprintf("%s %s", label, msg.Text)
		if msg.MealLogged {
			line += " " + theme.successStyle().Render("✓")
		}
		return line
	}
}

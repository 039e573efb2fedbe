package cli

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mealchat-go/internal/server"
)

// maxWatchLines bounds the scrollback kept by the watch view.
const maxWatchLines = 200

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the conversation live",
	Long: `Follow the conversation live: recent history first, then every new
message as it arrives, including the analysis replies to photos sent
from another terminal.

Press q or Ctrl+C to stop.`,
	RunE: runWatch,
}

// messageMsg carries one live conversation message into the UI.
type messageMsg server.MessageDTO

// watchErrMsg ends the UI when the stream breaks.
type watchErrMsg struct{ err error }

// watchModel is the bubbletea model for the live conversation view.
type watchModel struct {
	theme Theme
	lines []string
	err   error
}

func newWatchModel(history []server.MessageDTO) watchModel {
	m := watchModel{theme: defaultTheme}
	for _, msg := range history {
		m.lines = append(m.lines, renderMessage(m.theme, msg))
	}
	return m
}

// Init returns the initial command.
func (m watchModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case messageMsg:
		m.lines = append(m.lines, renderMessage(m.theme, server.MessageDTO(msg)))
		if len(m.lines) > maxWatchLines {
			m.lines = m.lines[len(m.lines)-maxWatchLines:]
		}
		return m, nil

	case watchErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the conversation.
func (m watchModel) View() tea.View {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.theme.hintStyle().Render("Press q to quit · send with 'mealchat send'"))
	b.WriteString("\n")
	return tea.NewView(b.String())
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	history, err := apiClient.History(ctx, userID, maxWatchLines)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	p := tea.NewProgram(newWatchModel(history))

	go func() {
		err := apiClient.Watch(ctx, userID, func(msg server.MessageDTO) {
			p.Send(messageMsg(msg))
		})
		if err != nil {
			p.Send(watchErrMsg{err: err})
		}
	}()

	finalModel, err := p.Run()
	cancel()
	if err != nil {
		return fmt.Errorf("watch UI error: %w", err)
	}
	if m, ok := finalModel.(watchModel); ok && m.err != nil {
		return fmt.Errorf("stream closed: %w", m.err)
	}
	return nil
}

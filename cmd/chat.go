package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/triadhq/triad/internal/app"
	"github.com/triadhq/triad/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sess, err := a.SessionStore.Create(ctx, "Chat Session")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	if err := session.SaveCurrentID(sess.ID); err != nil {
		return fmt.Errorf("recording current session: %w", err)
	}
	sessionID := sess.ID

	fmt.Println("Triad chat. Type /help for commands, Ctrl+D to exit.")
	fmt.Printf("Session: %s\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			exit, err := handleChatCommand(cmd, input, a, &sessionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if exit {
				break
			}
			continue
		}

		answer, err := a.Assistant.HandleQuery(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println(answer.Text)
		printSources(answer.SourcesUsed)
		fmt.Println()
	}

	return scanner.Err()
}

// handleChatCommand executes a slash command. It returns true when the
// loop should exit.
func handleChatCommand(cmd *cobra.Command, input string, a *app.App, sessionID *uuid.UUID) (bool, error) {
	ctx := cmd.Context()

	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /new    start a new session")
		fmt.Println("  /clear  clear the current session's history")
		fmt.Println("  /exit   leave the chat")

	case "/new":
		sess, err := a.SessionStore.Create(ctx, "Chat Session")
		if err != nil {
			return false, fmt.Errorf("creating session: %w", err)
		}
		if err := session.SaveCurrentID(sess.ID); err != nil {
			return false, fmt.Errorf("recording current session: %w", err)
		}
		*sessionID = sess.ID
		fmt.Printf("Started session %s\n", sess.ID)

	case "/clear":
		if err := a.Assistant.ClearHistory(ctx, *sessionID); err != nil {
			return false, fmt.Errorf("clearing history: %w", err)
		}
		fmt.Println("History cleared.")

	case "/exit", "/quit":
		fmt.Println("Goodbye.")
		return true, nil

	default:
		fmt.Printf("Unknown command: %s (try /help)\n", input)
	}

	return false, nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/triadhq/triad/internal/app"
	"github.com/triadhq/triad/internal/session"
	"github.com/triadhq/triad/internal/source"
)

var flagNewSession bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&flagNewSession, "new", false, "start a new session instead of continuing the current one")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sessionID, err := resolveSession(ctx, a, question)
	if err != nil {
		return err
	}

	answer, err := a.Assistant.HandleQuery(ctx, sessionID, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer.Text)
	printSources(answer.SourcesUsed)
	return nil
}

// resolveSession returns the session to use: the persisted current
// session unless --new was given or none exists, in which case a new
// one is created and recorded.
func resolveSession(ctx context.Context, a *app.App, firstQuery string) (uuid.UUID, error) {
	if !flagNewSession {
		current, err := session.LoadCurrentID()
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("loading current session: %w", err)
		}
		if current != nil {
			// Stale state file: the session may have been deleted.
			if _, err := a.SessionStore.Get(ctx, *current); err == nil {
				return *current, nil
			}
		}
	}

	sess, err := a.SessionStore.Create(ctx, firstQuery)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("creating session: %w", err)
	}
	if err := session.SaveCurrentID(sess.ID); err != nil {
		return uuid.UUID{}, fmt.Errorf("recording current session: %w", err)
	}
	return sess.ID, nil
}

func printSources(used []string) {
	if len(used) == 0 {
		return
	}
	labels := make([]string, len(used))
	for i, name := range used {
		labels[i] = source.Label(name)
	}
	fmt.Printf("\nSources: %s\n", strings.Join(labels, ", "))
}

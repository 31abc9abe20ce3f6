package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/triadhq/triad/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Clear a session's history, keeping the session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsClear,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd, sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sessions, err := a.SessionStore.List(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}

	current, _ := session.LoadCurrentID()
	for _, s := range sessions {
		marker := " "
		if current != nil && *current == s.ID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-40s  %s\n", marker, s.ID, truncateTitle(s.Title), formatAge(s.UpdatedAt))
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", args[0])
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.SessionStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	// Forget the state file pointer when it named the deleted session.
	if current, _ := session.LoadCurrentID(); current != nil && *current == id {
		_ = session.ClearCurrentID()
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

func runSessionsClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", args[0])
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Assistant.ClearHistory(ctx, id); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}

	fmt.Printf("Cleared history for session %s\n", id)
	return nil
}

func truncateTitle(title string) string {
	const max = 40
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max-3]) + "..."
}

// formatAge renders a timestamp relative to now for recent sessions.
func formatAge(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}

package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	mcpSDK "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/triadhq/triad/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Exposes the assistant as an MCP tool over stdio so MCP clients can
query the wiki, code, and database sources through one tool call.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := mcp.NewServer(mcp.Config{
		Name:    "triad",
		Version: Version,
	}, a.Assistant)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	a.Logger.Info("MCP server ready", "transport", "stdio")
	if err := server.Run(ctx, &mcpSDK.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server: %w", err)
	}
	return nil
}

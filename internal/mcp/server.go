// Package mcp exposes the assistant to MCP clients over stdio, so
// editors and other agents can ask questions through the same routing
// and merging pipeline as the CLI and the HTTP API.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/triadhq/triad/internal/assistant"
)

// Server wraps the MCP SDK server around the assistant.
type Server struct {
	mcpServer *mcp.Server
	assistant *assistant.Assistant
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// NewServer creates an MCP server exposing the query tool.
func NewServer(cfg Config, a *assistant.Assistant) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if a == nil {
		return nil, fmt.Errorf("assistant is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{mcpServer: mcpServer, assistant: a}
	if err := s.registerQuery(); err != nil {
		return nil, fmt.Errorf("registering query tool: %w", err)
	}
	return s, nil
}

// Run serves MCP on the given transport. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Query     string `json:"query" jsonschema:"The question to answer from the wiki, code repositories, and database"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Session UUID for conversational continuity; omit to start a new session"`
}

// QueryOutput is the structured tool result.
type QueryOutput struct {
	SessionID   string   `json:"session_id"`
	Text        string   `json:"text"`
	SourcesUsed []string `json:"sources_used"`
}

func (s *Server) registerQuery() error {
	inputSchema, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: "query",
		Description: "Answer a question from the organization's knowledge sources: wiki documentation, " +
			"code repositories, and the relational database. Returns the answer and which sources it came from.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in QueryInput) (*mcp.CallToolResult, any, error) {
		if in.Query == "" {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "query must not be empty"}},
			}, nil, nil
		}

		var sessionID uuid.UUID
		if in.SessionID == "" {
			sess, err := s.assistant.StartSession(ctx, in.Query)
			if err != nil {
				return nil, nil, fmt.Errorf("starting session: %w", err)
			}
			sessionID = sess.ID
		} else {
			parsed, err := uuid.Parse(in.SessionID)
			if err != nil {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: "session_id must be a UUID"}},
				}, nil, nil
			}
			sessionID = parsed
		}

		answer, err := s.assistant.HandleQuery(ctx, sessionID, in.Query)
		if err != nil {
			return nil, nil, err
		}

		out := QueryOutput{
			SessionID:   sessionID.String(),
			Text:        answer.Text,
			SourcesUsed: answer.SourcesUsed,
		}
		if out.SourcesUsed == nil {
			out.SourcesUsed = []string{}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answer.Text}},
		}, out, nil
	})
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/velikanov/folio/internal/chat"
	"github.com/velikanov/folio/internal/content"
	"github.com/velikanov/folio/internal/lang"
	"github.com/velikanov/folio/internal/prompt"
	"github.com/velikanov/folio/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Catalog   *content.Catalog
	Assembler *prompt.Assembler
	Sessions  *chat.Registry
}

// NewMCPServer creates an MCP server exposing the portfolio content and the
// chat assistant to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"folio",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("folio — personal portfolio content and its AI assistant."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("portfolio_overview",
			mcp.WithDescription("Return a plain-text overview of the portfolio: skills, projects, experience, education and certifications."),
		),
		mcpPortfolioOverview(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the curated knowledge base by keyword and return matching entries."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the portfolio assistant a question and return its reply."),
			mcp.WithString("question", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("language", mcp.Description("Reply language code (default en)")),
		),
		mcpAsk(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"portfolio://profile",
			"Profile",
			mcp.WithResourceDescription("The site owner's public profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpPortfolioOverview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := deps.Catalog.Snapshot(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load content: %v", err)), nil
		}

		overview := deps.Assembler.Assemble(snap)
		if overview == "" {
			return mcpText("The portfolio has no content yet."), nil
		}
		return mcpText(overview), nil
	}
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		snap, err := deps.Catalog.Snapshot(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load content: %v", err)), nil
		}

		q := strings.ToLower(query)
		var matches []storage.KnowledgeItem
		for _, item := range snap.Knowledge {
			if strings.Contains(strings.ToLower(item.Topic), q) ||
				strings.Contains(strings.ToLower(item.Description), q) {
				matches = append(matches, item)
				if len(matches) == limit {
					break
				}
			}
		}

		if len(matches) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(matches)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		language, _ := lang.Lookup(req.GetString("language", ""))

		// One-shot session: ask, collect the reply, throw the session away.
		s := deps.Sessions.Create(language)
		defer deps.Sessions.Delete(s.ID)

		turn, err := s.Submit(ctx, question)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to answer: %v", err)), nil
		}
		return mcpText(turn.Text), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap, err := deps.Catalog.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load content: %w", err)
		}
		if snap.Profile == nil {
			return nil, fmt.Errorf("profile not configured yet")
		}

		p := *snap.Profile
		p.GeminiAPIKey = ""
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// Package mcp implements the Model Context Protocol server for Mamori.
//
// The MCP server exposes crisis analysis and the active-case board to
// MCP-compatible AI agents, so a conversational agent can screen user
// text and surface open crises without going through the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/mamori/internal/assess"
	"github.com/ashita-ai/mamori/internal/intervention"
	"github.com/ashita-ai/mamori/internal/model"
)

// Server wraps the MCP server with Mamori's service layer.
type Server struct {
	mcpServer       *mcpserver.MCPServer
	assessSvc       *assess.Service
	interventionSvc *intervention.Service
	logger          *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(assessSvc *assess.Service, interventionSvc *intervention.Service, logger *slog.Logger) *Server {
	s := &Server{
		assessSvc:       assessSvc,
		interventionSvc: interventionSvc,
		logger:          logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"mamori",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// mamori://crises/active — the active case board, most severe first.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"mamori://crises/active",
			"Active Crises",
			mcplib.WithResourceDescription("Unresolved crisis cases, most severe first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleActiveCrisesResource,
	)
}

func (s *Server) registerTools() {
	// mamori_analyze — run crisis detection on a piece of user text.
	s.mcpServer.AddTool(
		mcplib.NewTool("mamori_analyze",
			mcplib.WithDescription(`Analyze user text for crisis indicators.

WHEN TO USE: whenever a user message might signal emotional distress or
self-harm risk. The analysis combines keyword, phrase-pattern and
linguistic signals with the user's recent assessment history.

WHAT YOU GET BACK:
- severity: none, low, moderate, high, critical, or immediate
- is_in_crisis / requires_immediate: the two intervention flags
- indicators: each detected signal with its confidence
- suggested_actions: concrete next steps, ordered most urgent first

If requires_immediate is true, act on the suggested actions before
continuing the conversation.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("text",
				mcplib.Description("The user text to analyze"),
				mcplib.Required(),
			),
			mcplib.WithString("user_id",
				mcplib.Description("Stable user identifier. Enables history-aware analysis; omit for an anonymous one-shot assessment."),
			),
			mcplib.WithString("language",
				mcplib.Description("BCP 47 language tag of the text (e.g. en, es). Auto-detected when omitted."),
			),
		),
		s.handleAnalyze,
	)

	// mamori_active_crises — list unresolved cases.
	s.mcpServer.AddTool(
		mcplib.NewTool("mamori_active_crises",
			mcplib.WithDescription(`List unresolved crisis cases, most severe first.

WHEN TO USE: to check whether a user already has an open case before
initiating a new one, or to review the current case load.

Filters are optional and combine with AND.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("severity",
				mcplib.Description("Only cases at exactly this severity (none, low, moderate, high, critical, immediate)"),
			),
			mcplib.WithString("type",
				mcplib.Description("Only cases of this crisis type (e.g. suicidal_ideation, self_harm, panic_attack)"),
			),
			mcplib.WithString("assigned_to",
				mcplib.Description("Only cases assigned to this responder"),
			),
		),
		s.handleActiveCrises,
	)
}

func (s *Server) handleAnalyze(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return errorResult("text is required"), nil
	}

	assessment, err := s.assessSvc.Analyze(ctx, model.AnalyzeRequest{
		Text:     text,
		UserID:   request.GetString("user_id", ""),
		Language: request.GetString("language", ""),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(assessment, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleActiveCrises(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	var filters model.ActiveCrisisFilters

	if v := request.GetString("severity", ""); v != "" {
		sev, err := model.ParseSeverity(v)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid severity: %s", v)), nil
		}
		filters.Severity = &sev
	}
	if v := request.GetString("type", ""); v != "" {
		ct := model.CrisisType(v)
		if !model.ValidCrisisType(ct) {
			return errorResult(fmt.Sprintf("invalid crisis type: %s", v)), nil
		}
		filters.CrisisType = &ct
	}
	if v := request.GetString("assigned_to", ""); v != "" {
		filters.AssignedTo = &v
	}

	active, err := s.interventionSvc.GetActive(ctx, filters)
	if err != nil {
		return errorResult(fmt.Sprintf("listing failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"crises": active,
		"total":  len(active),
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleActiveCrisesResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	active, err := s.interventionSvc.GetActive(ctx, model.ActiveCrisisFilters{})
	if err != nil {
		return nil, fmt.Errorf("mcp: active crises: %w", err)
	}

	data, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal crises: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "mamori://crises/active",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

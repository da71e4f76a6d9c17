// Package mcp exposes stored flows as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/stepgraph"
	"github.com/aretw0/stepgraph/internal/presentation/graph"
	"github.com/aretw0/stepgraph/internal/validator"
	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/aretw0/stepgraph/pkg/ports"
	"github.com/aretw0/stepgraph/pkg/report"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ReportArgs are the arguments of the chatbot_report tool.
type ReportArgs struct {
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
	GroupBy  string `json:"group_by,omitempty"`
}

// Server wraps a DocumentStore and exposes it as an MCP Server.
type Server struct {
	store     ports.DocumentStore
	reports   report.Source
	now       func() time.Time
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithReports registers the chatbot_report tool over src.
func WithReports(src report.Source) Option {
	return func(s *Server) {
		s.reports = src
	}
}

// WithClock overrides time.Now, used for report defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(store ports.DocumentStore, opts ...Option) *Server {
	s := &Server{
		store:     store,
		now:       time.Now,
		mcpServer: server.NewMCPServer("stepgraph-mcp", stepgraph.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the names of stored chatbot flows."),
	), s.handleListFlows)

	s.mcpServer.AddTool(mcp.NewTool("get_flow",
		mcp.WithDescription("Get a flow document as its ordered list of steps."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Flow name")),
	), s.handleGetFlow)

	s.mcpServer.AddTool(mcp.NewTool("flow_mermaid",
		mcp.WithDescription("Render a flow as a Mermaid flowchart."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Flow name")),
	), s.handleMermaid)

	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Check that every step of a flow is complete for its message and input types."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Flow name")),
	), s.handleValidate)

	if s.reports != nil {
		s.mcpServer.AddTool(mcp.NewTool("chatbot_report",
			mcp.WithDescription("Aggregate chatbot sessions. Dates are YYYY-MM-DD and default to the last 30 days."),
			mcp.WithString("from_date", mcp.Description("First day included")),
			mcp.WithString("to_date", mcp.Description("Last day included")),
			mcp.WithString("group_by", mcp.Description("date, flow or response_type"), mcp.Enum("date", "flow", "response_type")),
			mcp.WithOutputSchema[report.Result](),
		), mcp.NewStructuredToolHandler(s.handleReport))
	}
}

func (s *Server) handleListFlows(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if names == nil {
		names = []string{}
	}
	jsonBytes, _ := json.Marshal(names)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := s.load(ctx, request)
	if res != nil {
		return res, nil
	}
	jsonBytes, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleMermaid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := s.load(ctx, request)
	if res != nil {
		return res, nil
	}
	ed := stepgraph.New(nil)
	if err := ed.LoadDocument(ctx, doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(ed.Nodes(), ed.Edges(), nil)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := s.load(ctx, request)
	if res != nil {
		return res, nil
	}
	if err := validator.ValidateDocument(doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("flow %q is valid (%d steps)", doc.Name, len(doc.Steps))), nil
}

func (s *Server) handleReport(ctx context.Context, _ mcp.CallToolRequest, args ReportArgs) (report.Result, error) {
	filter, err := report.ParseFilter(s.now(), args.FromDate, args.ToDate, args.GroupBy)
	if err != nil {
		return report.Result{}, err
	}
	return report.Run(ctx, s.reports, filter)
}

// load fetches the flow named by the request. A non-nil result reports the failure.
func (s *Server) load(ctx context.Context, request mcp.CallToolRequest) (domain.FlowDocument, *mcp.CallToolResult) {
	name := request.GetString("name", "")
	if name == "" {
		return domain.FlowDocument{}, mcp.NewToolResultError("name is required")
	}
	doc, err := s.store.Get(ctx, name)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.FlowDocument{}, mcp.NewToolResultError(fmt.Sprintf("flow %q not found", name))
	}
	if err != nil {
		return domain.FlowDocument{}, mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err))
	}
	return doc, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("stepgraph://flows", "Stored flow names",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		jsonBytes, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "stepgraph://flows",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

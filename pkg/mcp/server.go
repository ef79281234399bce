package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlint/internal/connector"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/internal/uicode"
	"github.com/rendis/flowlint/internal/validation"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Runner    *runner.Runner
	Validator validation.Validator
	Registry  *connector.Registry
	Generator *uicode.Generator
	Store     store.Store
	// FailWhen is the default gate for validate calls that do not set one.
	FailWhen string
	Version  string
	Logger   *slog.Logger
}

// Server wraps an MCP server with flowlint tool handlers.
type Server struct {
	runner    *runner.Runner
	validator validation.Validator
	registry  *connector.Registry
	generator *uicode.Generator
	store     store.Store
	failWhen  string
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool registered. Tools whose
// dependency is missing answer with a tool error.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	validator := deps.Validator
	if validator == nil {
		validator = validation.NewFlowValidator(validation.Options{Logger: logger})
	}
	generator := deps.Generator
	if generator == nil {
		generator = uicode.NewGenerator()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		runner:    deps.Runner,
		validator: validator,
		registry:  deps.Registry,
		generator: generator,
		store:     deps.Store,
		failWhen:  deps.FailWhen,
		logger:    logger,
	}
	if s.runner == nil {
		s.runner = runner.New(validator, deps.Store, logger)
	}

	mcpSrv := server.NewMCPServer(
		"flowlint",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowlint checks flow documents before import or deployment. Use flowlint.validate to get errors, warnings and info for a flow, flowlint.graph to see its step graph, flowlint.endpoint to resolve a connector endpoint, flowlint.uicode to generate the map-action form of an endpoint request, and flowlint.history to list past validation runs and scheduled checks."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: graphTool(), Handler: s.handleGraph},
		{Tool: endpointTool(), Handler: s.handleEndpoint},
		{Tool: uiCodeTool(), Handler: s.handleUICode},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func validateTool() mcp.Tool {
	return mcp.NewTool("flowlint.validate",
		mcp.WithDescription("Validate a flow document and report errors, warnings and info"),
		mcp.WithString("file", mcp.Description("Path of the flow JSON file to validate")),
		mcp.WithString("document", mcp.Description("Flow JSON document text; used instead of file when set")),
		mcp.WithString("fail_when", mcp.Description("Gate expression over errors, warnings, info and codes (default: errors > 0)")),
	)
}

func graphTool() mcp.Tool {
	return mcp.NewTool("flowlint.graph",
		mcp.WithDescription("Render the step graph of a flow. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("file", mcp.Description("Path of the flow JSON file")),
		mcp.WithString("document", mcp.Description("Flow JSON document text; used instead of file when set")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
	)
}

func endpointTool() mcp.Tool {
	return mcp.NewTool("flowlint.endpoint",
		mcp.WithDescription("Resolve a connector endpoint by name"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Endpoint name")),
		mcp.WithString("connector", mcp.Description("Connector file to search (default: all files)")),
	)
}

func uiCodeTool() mcp.Tool {
	return mcp.NewTool("flowlint.uicode",
		mcp.WithDescription("Generate the map-action form for an endpoint request schema"),
		mcp.WithString("name", mcp.Description("Endpoint name whose request schema is used")),
		mcp.WithString("connector", mcp.Description("Connector file to search (default: all files)")),
		mcp.WithString("schema", mcp.Description("JSON Schema text; used instead of an endpoint when set")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("flowlint.history",
		mcp.WithDescription("Query past validation runs or scheduled checks"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("runs", "run", "checks"),
			mcp.Description("runs lists runs, run returns one run with its diagnostics, checks lists scheduled checks"),
		),
		mcp.WithString("run_id", mcp.Description("Run ID (resource=run)")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (file, flow_id, check_id, failed, since, limit, enabled)")),
	)
}

package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowlint/internal/diagram"
	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/pkg/schema"
)

// handleValidate validates a flow file or inline document and records the run.
func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file := req.GetString("file", "")
	document := req.GetString("document", "")
	if file == "" && document == "" {
		return mcp.NewToolResultError("one of file or document is required"), nil
	}

	r := runner.Request{
		File:     file,
		FailWhen: req.GetString("fail_when", s.failWhen),
		Trigger:  store.TriggerMCP,
	}
	if document != "" {
		r.Data = []byte(document)
	}

	out, err := s.runner.Run(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation failed to run: %v", err)), nil
	}

	var buf bytes.Buffer
	if err := report.RenderJSON(&buf, out.Report); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(buf.Bytes()))
}

// handleGraph renders the step graph of a flow with validation status.
func (s *Server) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	data, errResult := documentArg(req)
	if errResult != nil {
		return errResult, nil
	}

	model, buildErr := diagram.BuildDocument(data, s.validator.Validate(data))
	if buildErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", buildErr)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// handleEndpoint resolves a connector endpoint.
func (s *Server) handleEndpoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	if s.registry == nil {
		return mcp.NewToolResultError("no connector directory configured"), nil
	}

	ep, lookupErr := s.registry.Lookup(ctx, name, req.GetString("connector", ""))
	if lookupErr != nil {
		return lookupError(lookupErr), nil
	}
	return marshalResult(ep)
}

// handleUICode generates the map-action form for a request schema, taken
// from the schema argument or from an endpoint.
func (s *Server) handleUICode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schemaJSON := []byte(req.GetString("schema", ""))
	if len(schemaJSON) == 0 {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("one of name or schema is required"), nil
		}
		if s.registry == nil {
			return mcp.NewToolResultError("no connector directory configured"), nil
		}
		ep, err := s.registry.Lookup(ctx, name, req.GetString("connector", ""))
		if err != nil {
			return lookupError(err), nil
		}
		if schemaJSON, err = ep.RequestSchema(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	form, err := s.generator.Generate(schemaJSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("uiCode generation failed: %v", err)), nil
	}
	return marshalResult(form)
}

// handleHistory queries the run history.
func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("run history is not available: no store configured"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "runs":
		return s.queryRuns(ctx, filter)
	case "run":
		runID := req.GetString("run_id", "")
		if runID == "" {
			return mcp.NewToolResultError("run_id is required for resource=run"), nil
		}
		return s.getRun(ctx, runID)
	case "checks":
		return s.queryChecks(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *Server) queryRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if file, ok := filter["file"].(string); ok {
		rf.File = file
	}
	if flowID, ok := filter["flow_id"].(string); ok {
		rf.FlowID = flowID
	}
	if checkID, ok := filter["check_id"].(string); ok {
		rf.CheckID = checkID
	}
	if failed, ok := filter["failed"].(bool); ok {
		rf.Failed = &failed
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			rf.Since = &t
		}
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

func (s *Server) getRun(ctx context.Context, id string) (*mcp.CallToolResult, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
	}
	return marshalResult(run)
}

func (s *Server) queryChecks(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	cf := store.ScheduledCheckFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if file, ok := filter["file"].(string); ok {
		cf.File = file
	}
	if enabled, ok := filter["enabled"].(bool); ok {
		cf.Enabled = &enabled
	}

	checks, err := s.store.ListScheduledChecks(ctx, cf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"checks": checks})
}

// --- Internal helpers ---

// documentArg returns the inline document, or reads the file argument.
func documentArg(req mcp.CallToolRequest) ([]byte, *mcp.CallToolResult) {
	if doc := req.GetString("document", ""); doc != "" {
		return []byte(doc), nil
	}
	file := req.GetString("file", "")
	if file == "" {
		return nil, mcp.NewToolResultError("one of file or document is required")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("read %s: %v", file, err))
	}
	return data, nil
}

// lookupError reports a registry failure without the error-code prefix.
func lookupError(err error) *mcp.CallToolResult {
	var flowErr *schema.FlowError
	if errors.As(err, &flowErr) {
		return mcp.NewToolResultError(flowErr.Message)
	}
	return mcp.NewToolResultError(err.Error())
}

func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

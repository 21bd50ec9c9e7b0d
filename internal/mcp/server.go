// Package mcp exposes a role's voice tools as a Model Context Protocol
// server, so external agents can drive the same HR actions the voice
// assistant performs.
//
// Each tool of a [tools.Registry] becomes one MCP tool with the same name,
// description and input schema. Results are returned both as a JSON text
// block and as structured content. Tool-level failures are reported as
// error results, never as protocol errors.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/tools"
)

// Option configures [NewServer].
type Option func(*config)

type config struct {
	version string
	log     *slog.Logger
	metrics *observe.Metrics
}

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(c *config) { c.version = v }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMetrics records tool calls and latency into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// NewServer returns an MCP server named name that serves every tool of reg.
func NewServer(name string, reg *tools.Registry, opts ...Option) *mcpsdk.Server {
	cfg := &config{version: "dev", log: slog.Default()}
	for _, o := range opts {
		o(cfg)
	}

	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: cfg.version}, nil)
	for _, decl := range reg.Declarations() {
		srv.AddTool(&mcpsdk.Tool{
			Name:        decl.Name,
			Description: decl.Description,
			InputSchema: inputSchema(decl.Parameters),
		}, toolHandler(reg, decl.Name, cfg))
	}
	return srv
}

// RoleHandler serves a streamable HTTP MCP endpoint whose server is chosen
// by the {role} path value. Requests for unknown roles are rejected.
func RoleHandler(servers map[string]*mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return servers[r.PathValue("role")]
	}, nil)
}

func toolHandler(reg *tools.Registry, name string, cfg *config) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args map[string]any
		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		start := time.Now()
		res, err := reg.Execute(ctx, name, args)
		elapsed := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
			cfg.log.Warn("mcp: tool failed", "tool", name, "err", err)
		}
		if cfg.metrics != nil {
			cfg.metrics.RecordToolCall(ctx, name, status)
			cfg.metrics.ToolExecutionDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(observe.Attr("tool", name)))
		}
		if err != nil {
			return errorResult(err.Error()), nil
		}

		text, err := json.Marshal(res.Response)
		if err != nil {
			return errorResult("encode result: " + err.Error()), nil
		}
		return &mcpsdk.CallToolResult{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
			StructuredContent: res.Response,
		}, nil
	}
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
		IsError: true,
	}
}

// inputSchema returns params, or an empty object schema for argument-less
// tools; MCP requires every input schema to be an object.
func inputSchema(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return params
}

// Package mcp provides a Model Context Protocol server for canvass.
//
// It exposes question answering, extraction, filtering, metrics and import as
// MCP tools, and store statistics, import batches and a data-quality audit as
// MCP resources. It is served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/canvass/internal/aggregate"
	"github.com/hurttlocker/canvass/internal/answer"
	"github.com/hurttlocker/canvass/internal/contact"
	"github.com/hurttlocker/canvass/internal/extract"
	"github.com/hurttlocker/canvass/internal/filter"
	"github.com/hurttlocker/canvass/internal/ingest"
	"github.com/hurttlocker/canvass/internal/observe"
	"github.com/hurttlocker/canvass/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store    store.Store
	Engine   *answer.Engine // optional; defaults to a model-less engine over Store
	Importer *ingest.Engine // optional; defaults to an importer over Store
	Logger   *zap.Logger
	Version  string // version string for MCP server info
	Clock    func() time.Time
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines, and an
// import must finish before a later question sees its rows.
var dbMu sync.Mutex

// defaultFilterLimit caps the rows canvass_filter returns.
const defaultFilterLimit = 50

// NewServer creates a configured MCP server with all canvass tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Engine == nil {
		cfg.Engine = answer.NewEngine(cfg.Store, nil, answer.WithLogger(cfg.Logger), answer.WithClock(cfg.Clock))
	}
	if cfg.Importer == nil {
		cfg.Importer = ingest.NewEngine(cfg.Store, ingest.WithLogger(cfg.Logger))
	}

	s := server.NewMCPServer(
		"canvass",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	// Register tools
	registerAskTool(s, cfg.Engine)
	registerExtractTool(s, cfg.Store, cfg.Clock)
	registerFilterTool(s, cfg.Store)
	registerMetricsTool(s, cfg.Store)
	registerImportTool(s, cfg.Importer)

	// Register resources
	registerStatsResource(s, cfg.Store)
	registerBatchesResource(s, cfg.Store)
	registerAuditResource(s, observe.NewEngine(cfg.Store, cfg.Clock))

	return s
}

// --- Tools ---

// withQueryParams adds the structured filter arguments shared by several tools.
func withQueryParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("tactic",
			mcp.Description("Contact tactic filter"),
			mcp.Enum(contact.TacticSMS, contact.TacticPhone, contact.TacticCanvas, contact.All),
		),
		mcp.WithString("person",
			mcp.Description("Person name filter, e.g. 'Jane Doe'. Falls back to a fuzzy match when nothing matches exactly."),
		),
		mcp.WithString("team",
			mcp.Description("Team name filter"),
		),
		mcp.WithString("date",
			mcp.Description("ISO date (YYYY-MM-DD), or the start of a range when end_date is set"),
		),
		mcp.WithString("end_date",
			mcp.Description("Inclusive ISO end date of a range"),
		),
		mcp.WithString("metric",
			mcp.Description("Measure for the scalar total (default: attempts)"),
			mcp.Enum(aggregate.MetricNames()...),
		),
	}
}

func optionalString(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// queryFromRequest reads the structured filter arguments. The bool reports
// whether any was set.
func queryFromRequest(req mcp.CallToolRequest) (contact.Query, bool) {
	q := contact.Query{
		Tactic:     contact.CanonicalTactic(optionalString(req, "tactic")),
		Person:     optionalString(req, "person"),
		Team:       optionalString(req, "team"),
		Date:       optionalString(req, "date"),
		EndDate:    optionalString(req, "end_date"),
		ResultType: optionalString(req, "metric"),
	}
	return q, q != (contact.Query{})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func registerAskTool(s *server.MCPServer, engine *answer.Engine) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Answer a question about voter-contact records. The answer is checked against the matching records and replaced by a grounded summary when the model refuses, hedges or skips the data. Structured arguments override what is read from the question."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Free-text question, e.g. 'How many phone calls did Jane Doe make yesterday?'"),
		),
	}
	tool := mcp.NewTool("canvass_ask", append(opts, withQueryParams()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		askReq := answer.Request{Question: question}
		if q, ok := queryFromRequest(req); ok {
			askReq.Query = &q
		}

		result, err := engine.Ask(ctx, askReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask error: %v", err)), nil
		}
		return jsonResult(result)
	})
}

func registerExtractTool(s *server.MCPServer, st store.Store, now func() time.Time) {
	tool := mcp.NewTool("canvass_extract",
		mcp.WithDescription("Interpret a free-text question as a structured contact query without running it. Returns the query, shape and confidence."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Question text to interpret"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		teams, err := st.Teams(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading teams: %v", err)), nil
		}
		return jsonResult(extract.New(extract.WithClock(now), extract.WithTeams(teams...)).Extract(text))
	})
}

func registerFilterTool(s *server.MCPServer, st store.Store) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List the contact records matching structured filters, in import order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records returned (default: 50, max: 500). The match count is always complete."),
		),
	}
	tool := mcp.NewTool("canvass_filter", append(opts, withQueryParams()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := defaultFilterLimit
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = min(int(l), 500)
		}

		q, _ := queryFromRequest(req)
		records, err := st.Records(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}
		outcome := filter.Apply(records, q)

		shown := outcome.Records
		if len(shown) > limit {
			shown = shown[:limit]
		}
		return jsonResult(map[string]any{
			"query":   q,
			"matched": len(outcome.Records),
			"relaxed": outcome.Relaxed,
			"records": shown,
		})
	})
}

func registerMetricsTool(s *server.MCPServer, st store.Store) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Aggregate the contact records matching structured filters: attempts per tactic, contact results, not-reached reasons, per-date rollups and a scalar total for the chosen metric."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	}
	tool := mcp.NewTool("canvass_metrics", append(opts, withQueryParams()...)...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		q, _ := queryFromRequest(req)
		metric, ok := aggregate.LookupMetric(q.ResultType)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown metric %q", q.ResultType)), nil
		}

		records, err := st.Records(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("loading records: %v", err)), nil
		}
		outcome := filter.Apply(records, q)

		return jsonResult(map[string]any{
			"query":       q,
			"matched":     len(outcome.Records),
			"relaxed":     outcome.Relaxed,
			"metrics":     aggregate.Aggregate(outcome.Records),
			"scalar":      aggregate.Sum(outcome.Records, metric),
			"scalarLabel": metric.Label(),
		})
	})
}

func registerImportTool(s *server.MCPServer, importer *ingest.Engine) {
	tool := mcp.NewTool("canvass_import",
		mcp.WithDescription("Import a CSV, TSV or JSON contact log (or a directory of them) from the server's filesystem. Each file becomes one batch."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory path"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Parse and report without writing (default: false)"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Descend into subdirectories (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		path, err := req.RequireString("path")
		if err != nil || strings.TrimSpace(path) == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		result, err := importer.ImportFile(ctx, strings.TrimSpace(path), ingest.ImportOptions{
			DryRun:    req.GetBool("dry_run", false),
			Recursive: req.GetBool("recursive", false),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("import error: %v", err)), nil
		}

		warnings := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			warnings = append(warnings, e.Error())
		}
		return jsonResult(map[string]any{
			"filesImported":   result.FilesImported,
			"filesSkipped":    result.FilesSkipped,
			"recordsImported": result.RecordsImported,
			"batches":         result.Batches,
			"warnings":        warnings,
			"message":         strings.TrimSpace(ingest.FormatImportResult(result)),
		})
	})
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/canvass/internal/observe"
	"github.com/hurttlocker/canvass/internal/store"
)

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"canvass://stats",
		"Contact Store Statistics",
		mcp.WithResourceDescription("Contact, batch, person and team counts, the stored date span and the database size."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}
		return jsonContents(req.Params.URI, stats)
	})
}

func registerBatchesResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"canvass://batches",
		"Import Batches",
		mcp.WithResourceDescription("Every import batch with its source file, record count and import time, oldest first."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		batches, err := st.ListBatches(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing batches: %w", err)
		}
		if batches == nil {
			batches = []store.Batch{}
		}
		return jsonContents(req.Params.URI, batches)
	})
}

func registerAuditResource(s *server.MCPServer, auditor *observe.Engine) {
	resource := mcp.NewResource(
		"canvass://audit",
		"Data Quality Audit",
		mcp.WithResourceDescription("Records with unusable dates or impossible counts, duplicate or conflicting rows, people with no recent activity, and alerts summarising them."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		report, err := auditor.Audit(ctx, observe.AuditOpts{})
		if err != nil {
			return nil, fmt.Errorf("auditing records: %w", err)
		}
		return jsonContents(req.Params.URI, report)
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

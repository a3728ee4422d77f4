package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/canvass/internal/ingest"
	mcpserver "github.com/hurttlocker/canvass/internal/mcp"
)

func (c *cli) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the canvass tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			engine, err := c.engine(s, true)
			if err != nil {
				return err
			}
			srv := mcpserver.NewServer(mcpserver.ServerConfig{
				Store:    s,
				Engine:   engine,
				Importer: ingest.NewEngine(s, ingest.WithLogger(c.logger)),
				Logger:   c.logger,
				Version:  version,
				Clock:    c.now,
			})

			c.logger.Info("serving MCP over stdio", zap.String("db", c.cfg.DBPath.Value))
			return server.ServeStdio(srv)
		},
	}
}

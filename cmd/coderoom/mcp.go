package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/mcpserver"
)

func newMCPStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-stdio",
		Short: "Serve the execute_code tool over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			app := fx.New(coreModule(), fx.Invoke(runStdio))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

// runStdio serves until stdin closes, then stops the app
func runStdio(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.Logger, server *mcpserver.MCPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.ServeStdio(); err != nil {
					log.Error("MCP stdio server stopped", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, collaboration relay and MCP endpoint",
		RunE: func(_ *cobra.Command, _ []string) error {
			app := fx.New(coreModule(), serveModule())
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/app"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/mcptools"
	"github.com/RobinCoderZhao/newsdesk/pkg/mcpserver"
)

func newMCPServer(a *app.App) *mcpserver.Server {
	s := mcptools.NewServer(version, mcptools.Deps{
		Research: a.Research,
		Store:    a.Store,
		Vectors:  a.Vectors,
	})
	logger := slog.Default().With("component", "mcp")
	s.Use(mcpserver.Recovery(logger), mcpserver.Logging(logger))
	return s
}

func newMCPCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve newsdesk tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := cc.open(ctx)
			if err != nil {
				return err
			}
			defer cc.close()

			return newMCPServer(a).ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

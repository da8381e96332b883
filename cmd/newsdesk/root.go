package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/app"
	"github.com/RobinCoderZhao/newsdesk/internal/newsdesk/config"
)

// commandContext loads configuration and the app lazily so that commands
// like version never touch the database.
type commandContext struct {
	configPath string
	jsonOutput bool

	cfg *config.Config
	app *app.App
}

func (c *commandContext) loadConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	c.cfg = &cfg
	return cfg, nil
}

func (c *commandContext) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			slog.Warn("close app", "error", err)
		}
		c.app = nil
	}
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "newsdesk",
		Short:         "Multi-source news research pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := cc.loadConfig()
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "newsdesk.yaml", "Configuration file (yaml or toml)")
	rootCmd.PersistentFlags().BoolVar(&cc.jsonOutput, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(
		newServeCommand(cc),
		newResearchCommand(cc),
		newFetchCommand(cc),
		newTasksCommand(cc),
		newTaskCommand(cc),
		newDeleteCommand(cc),
		newStatsCommand(cc),
		newHistoryCommand(cc),
		newSimilarCommand(cc),
		newDailyCommand(cc),
		newMCPCommand(cc),
		newVersionCommand(),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsdesk %s\n", version)
		},
	}
}

// newLogger picks a text handler for terminals and JSON otherwise, unless
// the format is set explicitly.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Package main provides the semreq binary entry point.
// Semreq builds requirement-traceable documentation: it collects the
// requirements declared across a documentation tree, resolves their
// cross-references and listing tables, and renders the result.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semreq/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semreq"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	root       string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Requirement traceability for documentation builds",
		Long: `Semreq collects the requirements declared in reStructuredText and
Markdown documents, resolves references between them and renders the
documentation with requirement tables and listings.

It provides:
- build and watch for HTML, LaTeX and Markdown output
- list and check for inspecting the requirement registry
- export of the traceability graph as RDF
- a preview server with a JSON API and Prometheus metrics`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "Documentation source root (default: from config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		buildCmd(opts),
		watchCmd(opts),
		serveCmd(opts),
		listCmd(opts),
		checkCmd(opts),
		exportCmd(opts),
		initCmd(opts),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// newLogger configures a text handler on w at the named level.
func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig applies the layered configuration. An explicit --root wins
// over the configured source root and anchors the project config search.
func (o *globalOptions) loadConfig(logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	var root string
	if o.root != "" {
		abs, err := filepath.Abs(o.root)
		if err != nil {
			return nil, fmt.Errorf("resolve root: %w", err)
		}
		root = abs
		loader.SetWorkingDir(root)
	}
	cfg, err := loader.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if root != "" {
		cfg.Source.Root = root
	}
	return cfg, nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/c360studio/semreq/builder"
	"github.com/c360studio/semreq/config"
	"github.com/c360studio/semreq/export"
	"github.com/c360studio/semreq/server"
)

// errCheckFailed makes check exit non-zero after printing its diagnostics.
var errCheckFailed = errors.New("check failed")

// setup loads the configuration and starts an App for one command.
func (o *globalOptions) setup(cmd *cobra.Command, opts AppOptions) (*App, error) {
	logger := newLogger(cmd.ErrOrStderr(), o.logLevel)
	cfg, err := o.loadConfig(logger)
	if err != nil {
		return nil, err
	}
	app := NewApp(cfg, logger)
	if err := app.Start(cmd.Context(), opts); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// signalContext cancels on SIGINT and SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func buildCmd(g *globalOptions) *cobra.Command {
	var (
		formats []string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the documentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd, AppOptions{OutDir: outDir, Formats: formats})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			res, err := app.Builder().Build(cmd.Context())
			if err != nil {
				printDocumentErrors(cmd.ErrOrStderr(), res)
				return err
			}
			printBuildSummary(cmd.OutOrStdout(), res, app.Builder().OutDir())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "Output formats (html, latex, markdown)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: from config)")
	return cmd
}

func watchCmd(g *globalOptions) *cobra.Command {
	var formats []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild on source changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			cmd.SetContext(ctx)

			app, err := g.setup(cmd, AppOptions{Formats: formats})
			if err != nil {
				return err
			}
			defer app.Shutdown()
			b := app.Builder()

			res, err := b.Build(ctx)
			if err != nil {
				printDocumentErrors(cmd.ErrOrStderr(), res)
				return err
			}
			printBuildSummary(cmd.OutOrStdout(), res, b.OutDir())

			err = b.Watch(ctx, app.cfg.Watch.Debounce, func(res *builder.Result, err error) {
				if err != nil {
					printDocumentErrors(cmd.ErrOrStderr(), res)
					return
				}
				printBuildSummary(cmd.OutOrStdout(), res, b.OutDir())
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "Output formats (html, latex, markdown)")
	return cmd
}

func serveCmd(g *globalOptions) *cobra.Command {
	var (
		addr    string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build and serve the HTML output with a live requirement API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			cmd.SetContext(ctx)

			app, err := g.setup(cmd, AppOptions{Formats: []string{"html"}})
			if err != nil {
				return err
			}
			defer app.Shutdown()
			b := app.Builder()

			if _, err := b.Build(ctx); err != nil {
				return err
			}
			if addr == "" {
				addr = app.cfg.Server.Addr
			}
			srv := server.New(b.Environment(), server.Options{
				StaticDir: b.OutDir(),
				Gatherer:  app.registry,
				Logger:    app.logger,
			})

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return srv.ListenAndServe(ctx, addr)
			})
			if !noWatch {
				eg.Go(func() error {
					err := b.Watch(ctx, app.cfg.Watch.Debounce, nil)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			return eg.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: from config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not rebuild on source changes")
	return cmd
}

func listCmd(g *globalOptions) *cobra.Command {
	var (
		filterExpr string
		sortKeys   string
		columns    []string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd, AppOptions{Formats: []string{}, Offline: true})
			if err != nil {
				return err
			}
			defer app.Shutdown()
			b := app.Builder()

			if _, err := b.Build(cmd.Context()); err != nil {
				return err
			}
			var keys []string
			if sortKeys != "" {
				keys = []string{sortKeys}
			}
			records, err := b.Environment().Query(filterExpr, keys)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			fmt.Fprintln(cmd.OutOrStdout(), requirementTable(records, columns))
			fmt.Fprintln(cmd.OutOrStdout(), Styles.Muted.Render(fmt.Sprintf("%d requirements", len(records))))
			return nil
		},
	}
	cmd.Flags().StringVar(&filterExpr, "filter", "", `Filter expression, e.g. priority == "high"`)
	cmd.Flags().StringVar(&sortKeys, "sort", "", "Sort keys, e.g. parent,-priority")
	cmd.Flags().StringSliceVar(&columns, "columns", []string{"priority", "allocation"}, "Attribute columns")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func checkCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report document errors, unresolved references and invalid listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd, AppOptions{Formats: []string{}, Offline: true})
			if err != nil {
				return err
			}
			defer app.Shutdown()

			res, err := app.Builder().Build(cmd.Context())
			if err != nil && res.Report == nil && len(res.Errors) == 0 {
				return err
			}
			problems := collectProblems(res)
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintf(out, "%s %d requirements, %d references, no problems\n",
					Styles.StatusOK.String(), res.Report.Requirements, res.Report.References)
				return nil
			}
			fmt.Fprintln(out, problemTable(problems))
			fmt.Fprintf(out, "%s %d problems\n", Styles.StatusError.String(), len(problems))
			return errCheckFailed
		},
	}
}

func exportCmd(g *globalOptions) *cobra.Command {
	var (
		format  string
		profile string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the traceability graph as RDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if _, ok := export.Profiles[export.Profile(profile)]; !ok {
				return fmt.Errorf("unknown profile: %s", profile)
			}

			app, err := g.setup(cmd, AppOptions{Formats: []string{}, Offline: true})
			if err != nil {
				return err
			}
			defer app.Shutdown()
			b := app.Builder()

			if _, err := b.Build(cmd.Context()); err != nil {
				return err
			}
			entities, err := export.Entities(b.Environment())
			if err != nil {
				return err
			}
			exp := export.NewRDFExporter(export.Profile(profile))
			exp.AddEntities(entities)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := exp.Export(w, f); err != nil {
				return err
			}
			if output != "" {
				app.logger.Info("Exported graph", "path", output, "entities", exp.Len(), "format", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatTurtle), "RDF format ("+strings.Join(export.Formats(), ", ")+")")
	cmd.Flags().StringVar(&profile, "profile", string(export.ProfileMinimal), "Ontology profile (minimal, bfo, cco)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func initCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create " + config.ProjectConfigFile + " with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd.ErrOrStderr(), g.logLevel)
			dir := g.root
			if dir == "" {
				dir = "."
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			path, err := config.NewLoader(logger).WriteProjectConfig(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s\n", Styles.StatusOK.String(), path)
			return nil
		},
	}
}

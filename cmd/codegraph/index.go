// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
	"github.com/kraklabs/codegraph/pkg/ingestion"
)

// indexFlags are the flags shared by index and watch.
type indexFlags struct {
	metricsAddr string
	dot         bool
	workers     int
}

func (f *indexFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	fs.BoolVar(&f.dot, "dot", false, "Also write graph.dot")
	fs.IntVar(&f.workers, "workers", 0, "Parallel extraction workers (0: config value or one per CPU)")
}

// apply overlays explicitly set flags on cfg and re-validates it.
func (f *indexFlags) apply(fs *flag.FlagSet, cfg *ingestion.Config) error {
	if fs.Changed("dot") {
		cfg.Export.DOT = f.dot
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}
	return nil
}

// runIndex executes the 'index' command: one full rebuild of the
// repository into a new graphs_data/<timestamp> directory.
//
// Examples:
//
//	codegraph index                 Index the current directory
//	codegraph index ../app --dot    Also render graph.dot
//	codegraph index --json          Print summary.json on stdout
func runIndex(args []string, globals *GlobalFlags, stdout io.Writer) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	var f indexFlags
	f.bind(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph index [path] [options]

Runs one full rebuild of the repository at path (default: current
directory) and writes the results to <path>/graphs_data/YYYYMMDD_HHMMSS/.
Configuration is read from <path>/.codegraph.yaml when present.

Options:
`)
		fs.PrintDefaults()
	}

	path, err := parseCommand(fs, args, globals, stdout)
	if err != nil {
		return err
	}
	root, err := resolveRoot(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root, *globals)
	if err != nil {
		return err
	}
	if err := f.apply(fs, &cfg); err != nil {
		return err
	}

	logger := newLogger(*globals, stdout)
	slog.SetDefault(logger)

	stopMetrics := startMetricsServer(f.metricsAddr, logger)
	defer stopMetrics()

	ctx, cancel := signalContext(logger)
	defer cancel()

	res, err := runPipeline(ctx, cfg, root, logger, *globals)
	if err != nil {
		return err
	}
	return printResult(stdout, root, res, *globals)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// startMetricsServer serves /metrics on addr in the background. The returned
// function shuts the server down; it is a no-op when addr is empty.
func startMetricsServer(addr string, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// runPipeline runs one full rebuild with progress bars on a TTY.
func runPipeline(ctx context.Context, cfg ingestion.Config, root string, logger *slog.Logger, globals GlobalFlags) (*ingestion.Result, error) {
	pipeline, err := ingestion.NewPipeline(cfg, logger)
	if err != nil {
		return nil, classifyRunError(err)
	}

	progress := newProgressReporter(NewProgressConfig(globals))
	pipeline.SetProgress(progress.Func())
	res, err := pipeline.Run(ctx, root)
	progress.Close()
	if err != nil {
		return nil, classifyRunError(err)
	}
	return res, nil
}

// printResult prints the run summary, as JSON with --json.
func printResult(w io.Writer, root string, res *ingestion.Result, globals GlobalFlags) error {
	if globals.JSON {
		if err := output.JSONTo(w, res.Summary); err != nil {
			return errors.NewInternalError("Cannot encode summary", err.Error(), "", err)
		}
		return nil
	}

	sum := res.Summary
	outDir := sum.OutDir
	if rel, err := filepath.Rel(root, outDir); err == nil {
		outDir = rel
	}

	fmt.Fprintln(w)
	ui.Header("Run Complete")
	fmt.Fprintf(w, "%s %s\n", ui.Label("Output:"), ui.DimText(outDir))
	if sum.GitCommit != "" {
		fmt.Fprintf(w, "%s %s\n", ui.Label("Commit:"), ui.DimText(sum.GitCommit))
	}
	fmt.Fprintf(w, "%s %s\n", ui.Label("Files:"), ui.CountText(sum.FilesScanned))
	fmt.Fprintf(w, "%s %s\n", ui.Label("AST nodes:"), ui.CountText(sum.AstNodes))
	fmt.Fprintf(w, "%s %s nodes, %s edges\n", ui.Label("Graph:"),
		ui.CountText(sum.GraphNodes), ui.CountText(sum.GraphEdges))
	fmt.Fprintf(w, "%s %s (%s split)\n", ui.Label("RAG records:"),
		ui.CountText(sum.RagRecords), ui.CountText(sum.ChunksSplit))
	fmt.Fprintf(w, "%s %s\n", ui.Label("Duration:"), time.Duration(sum.DurationMS)*time.Millisecond)
	fmt.Fprintln(w)

	ui.Counts("Nodes by kind:", sum.NodesByKind)
	ui.Counts("Edges by label:", sum.EdgesByLabel)
	ui.Counts("Skipped files:", sum.FilesSkipped)

	if sum.Unresolved > 0 {
		ui.Warningf("%d directives could not be resolved to a repository file", sum.Unresolved)
	}
	if len(res.Errors) > 0 {
		ui.Warningf("%d files failed to extract:", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", ui.DimText(e.Error()))
		}
	}
	ui.Successf("Wrote %s", outDir)
	return nil
}

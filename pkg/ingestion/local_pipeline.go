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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/codegraph/pkg/export"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/rag"
)

// Pipeline steps reported to ProgressFunc and the stage duration metric.
const (
	StepScan    = "scan"
	StepExtract = "extract"
	StepLink    = "link"
	StepChunk   = "chunk"
	StepEnrich  = "enrich"
	StepExport  = "export"
)

// ProgressFunc receives per-step progress. It is called from worker
// goroutines and must be safe for concurrent use.
type ProgressFunc func(step string, done, total int)

// Pipeline runs Scanner, extractors, linkers, merger, chunker, enricher and
// exporter over one repository root. Every Run is a full rebuild.
type Pipeline struct {
	config   Config
	logger   *slog.Logger
	scanner  *Scanner
	progress ProgressFunc
	now      func() time.Time
}

// Result summarizes one run.
type Result struct {
	OutDir  string
	Summary export.Summary

	Nodes   []model.AstNode
	Graph   *graph.Graph
	Records []model.RagRecord

	// Errors are the isolated per-file extraction failures.
	Errors []*ExtractError
}

// NewPipeline validates config, loads every grammar and prepares the
// scanner. Invalid configuration and unusable grammars are rejected before
// any file is read.
func NewPipeline(config Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := CheckGrammars(context.Background()); err != nil {
		return nil, err
	}
	scanner, err := NewScanner(config.Scan, logger)
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	return &Pipeline{
		config:  config,
		logger:  logger,
		scanner: scanner,
		now:     time.Now,
	}, nil
}

// SetProgress installs a progress callback. Nil disables reporting.
func (p *Pipeline) SetProgress(fn ProgressFunc) {
	p.progress = fn
}

func (p *Pipeline) report(step string, done, total int) {
	if p.progress != nil {
		p.progress(step, done, total)
	}
}

func (p *Pipeline) workers() int {
	if p.config.Workers > 0 {
		return p.config.Workers
	}
	return runtime.NumCPU()
}

// Run executes the full pipeline for root. Per-file failures are logged and
// isolated; scan, configuration and export failures abort the run.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	startTime := p.now()
	p.logger.Info("pipeline.start", "root", root)

	// Step 1: Scan repository
	stepStart := time.Now()
	scan, err := p.scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	recordScan(len(scan.Files), scan.SkipReasons)
	observeStage(StepScan, time.Since(stepStart))
	p.report(StepScan, len(scan.Files), len(scan.Files))
	p.logger.Info("pipeline.step.scan",
		"files", len(scan.Files),
		"bytes", scan.TotalSize,
		"skipped", scan.SkipReasons,
	)

	// Step 2: Extract nodes per file
	stepStart = time.Now()
	nodes, extractErrs, err := p.extractFiles(ctx, scan.Files)
	if err != nil {
		return nil, err
	}
	recordNodes(nodes)
	observeStage(StepExtract, time.Since(stepStart))
	p.logger.Info("pipeline.step.extract",
		"nodes", len(nodes),
		"errors", len(extractErrs),
		"duration_ms", time.Since(stepStart).Milliseconds(),
	)

	// Step 3: Link per language family, then merge
	stepStart = time.Now()
	merged, unresolved, err := p.linkFamilies(ctx, nodes)
	if err != nil {
		return nil, err
	}
	recordGraph(merged, unresolved)
	observeStage(StepLink, time.Since(stepStart))
	p.report(StepLink, 1, 1)
	p.logger.Info("pipeline.step.link",
		"graph_nodes", merged.Len(),
		"graph_edges", len(merged.Edges()),
		"unresolved", unresolved,
	)

	// Step 4: Chunk
	stepStart = time.Now()
	chunker, err := rag.NewChunker(scan.Root, p.config.Chunk, p.logger)
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}
	records := chunker.Chunk(nodes)
	split := countSplit(records)
	recordRecords(len(records), split)
	observeStage(StepChunk, time.Since(stepStart))
	p.report(StepChunk, len(records), len(records))
	p.logger.Info("pipeline.step.chunk", "records", len(records), "split", split)

	// Step 5: Enrich with graph neighbors
	stepStart = time.Now()
	rag.Enrich(merged, records, p.config.Neighbors)
	observeStage(StepEnrich, time.Since(stepStart))
	p.report(StepEnrich, len(records), len(records))

	// Step 6: Export; summary.json last
	stepStart = time.Now()
	run := export.Run{
		Nodes:   nodes,
		Graph:   merged,
		Records: records,
		Summary: export.Summary{
			Root:          scan.Root,
			GitCommit:     GitHead(scan.Root),
			DurationMS:    time.Since(startTime).Milliseconds(),
			FilesScanned:  len(scan.Files),
			FilesSkipped:  scan.SkipReasons,
			ExtractErrors: len(extractErrs),
			ChunksSplit:   split,
			Unresolved:    unresolved,
		},
	}
	summary, err := export.Write(scan.Root, run, p.config.Export, startTime, p.logger)
	if err != nil {
		return nil, fmt.Errorf("export run: %w", err)
	}
	observeStage(StepExport, time.Since(stepStart))
	p.report(StepExport, 1, 1)

	totalDuration := time.Since(startTime)
	observeTotal(totalDuration)
	p.logger.Info("pipeline.complete",
		"out_dir", summary.OutDir,
		"ast_nodes", summary.AstNodes,
		"graph_edges", summary.GraphEdges,
		"rag_records", summary.RagRecords,
		"extract_errors", summary.ExtractErrors,
		"total_duration_ms", totalDuration.Milliseconds(),
	)

	return &Result{
		OutDir:  summary.OutDir,
		Summary: summary,
		Nodes:   nodes,
		Graph:   merged,
		Records: records,
		Errors:  extractErrs,
	}, nil
}

// extractFiles extracts files on a bounded worker pool. Results are
// collected by file index, so the node order follows the sorted scan order
// regardless of completion order.
func (p *Pipeline) extractFiles(ctx context.Context, files []ScannedFile) ([]model.AstNode, []*ExtractError, error) {
	perFile := make([][]model.AstNode, len(files))
	var (
		mu       sync.Mutex
		failures []*ExtractError
		done     atomic.Int64
	)
	opts := p.config.ExtractOptions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			nodes, xerr := p.extractFile(gctx, files[i], opts)
			if xerr != nil {
				mu.Lock()
				failures = append(failures, xerr)
				mu.Unlock()
			}
			perFile[i] = nodes
			p.report(StepExtract, int(done.Add(1)), len(files))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extract files: %w", err)
	}

	var nodes []model.AstNode
	for _, batch := range perFile {
		nodes = append(nodes, batch...)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return nodes, failures, nil
}

// extractFile never fails the run: read errors drop the file, extraction
// errors fall back to the extractor's degraded output.
func (p *Pipeline) extractFile(ctx context.Context, file ScannedFile, opts ExtractOptions) ([]model.AstNode, *ExtractError) {
	extractor := ExtractorFor(file.Language)
	if extractor == nil {
		p.logger.Debug("extract.file.no_extractor", "path", file.Path)
		return nil, nil
	}
	src, err := ReadSource(file, p.config.Scan.MaxFileBytes)
	if err != nil {
		p.logger.Warn("extract.file.unreadable", "path", file.Path, "err", err)
		return nil, nil
	}

	nodes, err := extractor.Extract(ctx, file, src, opts)
	if err == nil {
		return nodes, nil
	}

	var xerr *ExtractError
	if !errors.As(err, &xerr) {
		xerr = &ExtractError{Path: file.Path, Language: file.Language, Stage: StageExtract, Err: err}
	}
	recordExtractError(file.Language, xerr.Stage)
	p.logger.Warn("extract.file.error",
		"path", file.Path,
		"language", file.Language,
		"stage", xerr.Stage,
		"err", xerr.Err,
	)
	if xerr.TreeDump != "" {
		p.logger.Debug("extract.file.tree", "path", file.Path, "tree", xerr.TreeDump)
	}
	return extractor.Degrade(file, src, opts), xerr
}

// linkFamilies links each language family on its own worker and merges the
// subgraphs in a fixed family order.
func (p *Pipeline) linkFamilies(ctx context.Context, nodes []model.AstNode) (*graph.Graph, int, error) {
	byFamily := make(map[string][]model.AstNode)
	for _, n := range nodes {
		fam := LinkerFamily(n.Language)
		byFamily[fam] = append(byFamily[fam], n)
	}
	families := make([]string, 0, len(byFamily))
	for fam := range byFamily {
		families = append(families, fam)
	}
	sort.Strings(families)

	graphs := make([]*graph.Graph, len(families))
	stats := make([]graph.Stats, len(families))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, fam := range families {
		i, fam := i, fam
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger := p.logger.With("family", fam)
			graphs[i], stats[i] = graph.Link(byFamily[fam], graph.StrategyFor(fam), p.config.Link, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("link graphs: %w", err)
	}

	unresolved := 0
	for _, s := range stats {
		unresolved += s.Unresolved
	}
	return graph.Merge(graphs...), unresolved, nil
}

// countSplit counts parents emitted as more than one chunk.
func countSplit(records []model.RagRecord) int {
	n := 0
	for _, r := range records {
		if r.Chunk != nil && r.Chunk.Total > 1 && r.Chunk.Index == 1 {
			n++
		}
	}
	return n
}

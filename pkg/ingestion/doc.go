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

// Package ingestion provides the code graph pipeline for codegraph.
//
// The ingestion package walks a repository, extracts a flat list of AST
// nodes per file with tree-sitter, links them into a labeled dependency
// graph per language family, and hands the merged graph to the chunker,
// the neighbor enricher and the exporter.
//
// # Pipeline Overview
//
// A run processes a repository in six steps:
//
//  1. Scan: walk the root, prune skip dirs, apply globs and .gitignore
//  2. Extract: parse each file and emit AST nodes (bounded worker pool)
//  3. Link: build one graph per language family, then merge
//  4. Chunk: project nodes into RAG records, splitting large entities
//  5. Enrich: attach graph neighbors to every record
//  6. Export: write JSONL, GraphML and summary.json to a run directory
//
// Every run is a full rebuild. summary.json is written last, so a run
// directory without it is incomplete.
//
// # Supported Languages
//
// Tree-sitter extraction:
//   - Dart (.dart), the reference extractor, with a text-pattern fallback
//   - Rust (.rs)
//   - TypeScript (.ts, .tsx, .mts, .cts) and JavaScript (.js, .jsx, .mjs, .cjs)
//   - Python (.py, .pyi)
//
// YAML, JSON, TOML and Markdown files are indexed as whole-file records.
//
// # Quick Start
//
//	cfg := ingestion.DefaultConfig()
//	pipeline, err := ingestion.NewPipeline(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := pipeline.Run(ctx, "/path/to/repo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("%d nodes, %d records in %s\n",
//	    result.Summary.AstNodes, result.Summary.RagRecords, result.OutDir)
//
// # Key Components
//
// Scanner selects the files to extract:
//
//	scanner, err := ingestion.NewScanner(cfg.Scan, logger)
//	scan, err := scanner.Scan(ctx, root)
//
// Extractor turns one file into nodes. ExtractorFor picks one by language:
//
//	nodes, err := ingestion.ExtractorFor(file.Language).Extract(ctx, file, src, cfg.ExtractOptions())
//
// A failing file never aborts the run. Its *ExtractError is collected in
// Result.Errors and the extractor's Degrade output is used instead.
//
// # Configuration
//
// Config is loaded from YAML with LoadConfigFile, overridden from
// CODEGRAPH_* variables with ApplyEnv and checked with Validate. NewPipeline
// rejects invalid configuration before any file is read.
//
// # Metrics
//
// The pipeline records Prometheus counters and histograms under the
// codegraph_ prefix. They are registered with the default registry on first
// use.
package ingestion

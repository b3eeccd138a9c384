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

// Package main implements the codegraph CLI, which turns a source
// repository into an AST node dump, a dependency graph and RAG chunk
// records under graphs_data/<timestamp>/.
//
// Usage:
//
//	codegraph index [path]     Run one full rebuild
//	codegraph watch [path]     Rebuild whenever files change
//	codegraph latest [path]    Print the latest complete output directory
//	codegraph version          Print version information
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are accepted before or after the subcommand name.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
	Quiet      bool
	NoColor    bool
	Debug      bool
	Version    bool
}

// bindGlobalFlags registers the global flags on fs, writing into g. The
// current values of g become the defaults so flags parsed before the
// subcommand name survive the second registration.
func bindGlobalFlags(fs *flag.FlagSet, g *GlobalFlags) {
	fs.StringVar(&g.ConfigPath, "config", g.ConfigPath, "Path to the config file (default: <path>/.codegraph.yaml)")
	fs.BoolVar(&g.JSON, "json", g.JSON, "Print machine-readable JSON instead of colored text")
	fs.BoolVarP(&g.Quiet, "quiet", "q", g.Quiet, "Suppress progress output")
	fs.BoolVar(&g.NoColor, "no-color", g.NoColor, "Disable colored output")
	fs.BoolVar(&g.Debug, "debug", g.Debug, "Enable debug logging")
	fs.BoolVar(&g.Version, "version", g.Version, "Show version and exit")
}

// normalize applies flag interactions: --json implies quiet, and NO_COLOR
// disables color like --no-color.
func (g *GlobalFlags) normalize() {
	if g.JSON {
		g.Quiet = true
	}
	if os.Getenv("NO_COLOR") != "" {
		g.NoColor = true
	}
}

// newLogger builds the CLI logger. Logs go to stderr when --json owns stdout.
func newLogger(g GlobalFlags, stdout io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.Debug {
		level = slog.LevelDebug
	} else if g.Quiet {
		level = slog.LevelWarn
	}
	w := stdout
	if g.JSON {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

const usageText = `codegraph - code to graph to RAG chunks

codegraph scans a repository, extracts declarations and directives from
Dart, Rust, TypeScript/JavaScript and Python sources, links them into a
dependency graph and writes chunked records ready for embedding.

Usage:
  codegraph <command> [options]

Commands:
  index [path]    Run one full rebuild of the repository (default: .)
  watch [path]    Rebuild after every burst of file changes
  latest [path]   Print the latest complete output directory
  version         Show version information

Global Options:
  --config PATH   Config file (default: <path>/.codegraph.yaml)
  --json          Print JSON instead of colored text
  -q, --quiet     Suppress progress output
  --no-color      Disable colored output
  --debug         Enable debug logging
  --version       Show version and exit

Output:
  Each run writes <path>/graphs_data/YYYYMMDD_HHMMSS/ containing
  ast_nodes.jsonl, graph_nodes.jsonl, graph_edges.jsonl,
  rag_records.jsonl, graph.graphml and summary.json (written last).

Environment Variables:
  CODEGRAPH_MAX_FILE_BYTES   Skip files larger than this
  CODEGRAPH_MAX_CHUNK_LINES  Lines per chunk before splitting
  CODEGRAPH_MAX_CHUNK_CHARS  Characters per chunk before splitting
  CODEGRAPH_OVERLAP_LINES    Lines shared by consecutive chunks
  CODEGRAPH_MAX_NEIGHBORS    Neighbor entries per record
  CODEGRAPH_WORKERS          Parallel extraction workers

For detailed command help: codegraph <command> --help
`

func main() {
	var globals GlobalFlags
	code := run(os.Args[1:], &globals, os.Stdout, os.Stderr)
	os.Exit(code)
}

// run parses global flags, dispatches the subcommand and returns the exit
// code.
func run(args []string, globals *GlobalFlags, stdout, stderr io.Writer) int {
	root := flag.NewFlagSet("codegraph", flag.ContinueOnError)
	root.SetInterspersed(false)
	root.SetOutput(stderr)
	bindGlobalFlags(root, globals)
	root.Usage = func() { fmt.Fprint(stderr, usageText) }

	if err := root.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return errors.ExitSuccess
		}
		return errors.Report(stderr, errors.NewInputError("Invalid global flags", err.Error(),
			"Run 'codegraph --help' for usage"), globals.JSON, globals.NoColor)
	}

	if globals.Version {
		printVersion(stdout, *globals)
		return errors.ExitSuccess
	}

	rest := root.Args()
	if len(rest) == 0 {
		root.Usage()
		return errors.ExitInput
	}

	command, cmdArgs := rest[0], rest[1:]
	var err error
	switch command {
	case "index":
		err = runIndex(cmdArgs, globals, stdout)
	case "watch":
		err = runWatch(cmdArgs, globals, stdout)
	case "latest":
		err = runLatest(cmdArgs, globals, stdout)
	case "version":
		err = runVersion(cmdArgs, globals, stdout)
	case "help":
		root.Usage()
	default:
		err = errors.NewInputError(
			fmt.Sprintf("Unknown command: %s", command),
			"",
			"Run 'codegraph --help' to list the available commands",
		)
	}
	if stderrors.Is(err, flag.ErrHelp) {
		return errors.ExitSuccess
	}
	return errors.Report(stderr, err, globals.JSON, globals.NoColor)
}

// versionInfo is the --json form of the version command.
type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func runVersion(args []string, globals *GlobalFlags, stdout io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if _, err := parseCommand(fs, args, globals, stdout); err != nil {
		return err
	}
	printVersion(stdout, *globals)
	return nil
}

func printVersion(w io.Writer, g GlobalFlags) {
	if g.JSON {
		_ = output.JSONTo(w, versionInfo{Version: version, Commit: commit, Date: date})
		return
	}
	fmt.Fprintf(w, "codegraph version %s\n", version)
	fmt.Fprintf(w, "commit: %s\n", commit)
	fmt.Fprintf(w, "built: %s\n", date)
}

// parseCommand parses a subcommand FlagSet that also accepts the global
// flags, initializes colors and returns the optional path argument.
func parseCommand(fs *flag.FlagSet, args []string, globals *GlobalFlags, stdout io.Writer) (string, error) {
	bindGlobalFlags(fs, globals)
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return "", err
		}
		return "", errors.NewInputError("Invalid flags", err.Error(),
			fmt.Sprintf("Run 'codegraph %s --help' for usage", fs.Name()))
	}
	globals.normalize()
	ui.InitColors(globals.NoColor)
	ui.SetOutput(stdout)
	if globals.Version {
		printVersion(stdout, *globals)
		return "", flag.ErrHelp
	}

	switch fs.NArg() {
	case 0:
		return ".", nil
	case 1:
		return fs.Arg(0), nil
	default:
		return "", errors.NewInputError(
			fmt.Sprintf("Too many arguments for %s", fs.Name()),
			fmt.Sprintf("expected at most one path, got %d", fs.NArg()),
			fmt.Sprintf("Run 'codegraph %s --help' for usage", fs.Name()),
		)
	}
}

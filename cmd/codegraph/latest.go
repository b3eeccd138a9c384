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
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/pkg/export"
	"github.com/kraklabs/codegraph/pkg/ingestion"
)

// latestResult is the --json form of the latest command.
type latestResult struct {
	output.PathResult
	Complete bool            `json:"complete"`
	Summary  *export.Summary `json:"summary,omitempty"`
}

// runLatest executes the 'latest' command: print the newest run directory
// whose summary.json exists.
func runLatest(args []string, globals *GlobalFlags, stdout io.Writer) error {
	fs := flag.NewFlagSet("latest", flag.ContinueOnError)
	includeIncomplete := fs.Bool("include-incomplete", false, "Also consider runs without summary.json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph latest [path] [options]

Prints the latest complete output directory of the repository at path.
A run is complete once its summary.json has been written.

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

	dir, err := latestDir(root, cfg, *includeIncomplete)
	if err != nil {
		return classifyRunError(err)
	}

	if !globals.JSON {
		fmt.Fprintln(stdout, dir)
		return nil
	}

	res := latestResult{PathResult: output.PathResult{Path: dir}}
	if sum, err := export.ReadSummary(dir); err == nil {
		res.Complete = true
		res.Summary = &sum
	}
	if err := output.JSONTo(stdout, res); err != nil {
		return errors.NewInternalError("Cannot encode result", err.Error(), "", err)
	}
	return nil
}

func latestDir(root string, cfg ingestion.Config, includeIncomplete bool) (string, error) {
	if includeIncomplete {
		return export.Latest(root, cfg.Export.OutputDir)
	}
	return export.LatestComplete(root, cfg.Export.OutputDir)
}

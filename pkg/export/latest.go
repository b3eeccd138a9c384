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

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNoRuns is returned when no run directory exists.
var ErrNoRuns = errors.New("no run directories")

// Latest returns the lexicographically greatest run directory under
// {root}/{outputDir}, complete or not.
func Latest(root, outputDir string) (string, error) {
	runs, err := listRuns(root, outputDir)
	if err != nil {
		return "", err
	}
	return runs[len(runs)-1], nil
}

// LatestComplete is Latest restricted to runs whose summary.json exists.
// Runs aborted mid-export are skipped.
func LatestComplete(root, outputDir string) (string, error) {
	runs, err := listRuns(root, outputDir)
	if err != nil {
		return "", err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if _, err := os.Stat(filepath.Join(runs[i], FileSummary)); err == nil {
			return runs[i], nil
		}
	}
	return "", ErrNoRuns
}

// listRuns returns run directories in ascending order.
func listRuns(root, outputDir string) ([]string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	base := filepath.Join(root, outputDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && isRunName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNoRuns
	}
	sort.Strings(names)
	runs := make([]string, len(names))
	for i, n := range names {
		runs[i] = filepath.Join(base, n)
	}
	return runs, nil
}

func isRunName(name string) bool {
	if len(name) != len(RunDirLayout) {
		return false
	}
	_, err := time.Parse(RunDirLayout, name)
	return err == nil
}

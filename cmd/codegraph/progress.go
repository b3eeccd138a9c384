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
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/codegraph/pkg/ingestion"
)

// ProgressConfig determines if and how progress should be displayed.
type ProgressConfig struct {
	// Enabled is false with --json, -q, or when stderr is not a TTY.
	Enabled bool

	// Writer is where progress output goes (always os.Stderr).
	Writer io.Writer

	NoColor bool
}

// NewProgressConfig creates a progress configuration from the global flags
// and TTY detection.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	enabled := !globals.Quiet && !globals.JSON && isatty.IsTerminal(os.Stderr.Fd())

	return ProgressConfig{
		Enabled: enabled,
		Writer:  os.Stderr,
		NoColor: globals.NoColor,
	}
}

// NewProgressBar creates a progress bar with consistent styling.
// Returns nil if progress is disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner creates an indeterminate spinner for steps whose total is not
// known yet. Returns nil if progress is disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}

	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// stepDescription maps pipeline steps to user-facing descriptions.
func stepDescription(step string) string {
	switch step {
	case ingestion.StepScan:
		return "Scanning files"
	case ingestion.StepExtract:
		return "Extracting symbols"
	case ingestion.StepLink:
		return "Linking graph"
	case ingestion.StepChunk:
		return "Chunking records"
	case ingestion.StepEnrich:
		return "Adding neighbors"
	case ingestion.StepExport:
		return "Writing output"
	default:
		return step
	}
}

// progressReporter turns pipeline progress callbacks into one bar per step.
// The pipeline calls it from worker goroutines.
type progressReporter struct {
	cfg ProgressConfig

	mu      sync.Mutex
	spinner *progressbar.ProgressBar
	step    string
	bar     *progressbar.ProgressBar
}

// newProgressReporter starts the scan spinner. It returns nil when progress
// is disabled, and a nil reporter yields a nil callback.
func newProgressReporter(cfg ProgressConfig) *progressReporter {
	if !cfg.Enabled {
		return nil
	}
	return &progressReporter{cfg: cfg, spinner: NewSpinner(cfg, stepDescription(ingestion.StepScan))}
}

// Func returns the callback to install with Pipeline.SetProgress.
func (r *progressReporter) Func() ingestion.ProgressFunc {
	if r == nil {
		return nil
	}
	return r.report
}

func (r *progressReporter) report(step string, done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spinner != nil {
		_ = r.spinner.Finish()
		r.spinner = nil
	}
	if step != r.step {
		r.finishBar()
		r.step = step
		r.bar = NewProgressBar(r.cfg, int64(total), stepDescription(step))
	}
	if r.bar == nil {
		return
	}
	_ = r.bar.Set(done)
	if done >= total {
		r.finishBar()
	}
}

func (r *progressReporter) finishBar() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// Close clears whatever is still on screen.
func (r *progressReporter) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		_ = r.spinner.Finish()
		r.spinner = nil
	}
	r.finishBar()
}

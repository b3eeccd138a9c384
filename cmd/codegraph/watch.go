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
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
	"github.com/kraklabs/codegraph/pkg/export"
	"github.com/kraklabs/codegraph/pkg/ingestion"
)

const defaultDebounce = 500 * time.Millisecond

// runWatch executes the 'watch' command: an initial full rebuild, then one
// full rebuild per burst of file changes until interrupted.
func runWatch(args []string, globals *GlobalFlags, stdout io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var f indexFlags
	f.bind(fs)
	debounce := fs.Duration("debounce", defaultDebounce, "Quiet period after the last change before rebuilding")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph watch [path] [options]

Indexes the repository at path, then rebuilds it after every burst of
file changes. Every rebuild is a full run into a new output directory.
Press Ctrl+C to stop.

Options:
`)
		fs.PrintDefaults()
	}

	path, err := parseCommand(fs, args, globals, stdout)
	if err != nil {
		return err
	}
	if *debounce <= 0 {
		return errors.NewInputError("Invalid --debounce", "the debounce period must be positive", "Use e.g. --debounce 500ms")
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

	filter, err := newChangeFilter(root, cfg)
	if err != nil {
		return configError(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("Cannot start file watcher", err.Error(), "", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root, filter, logger); err != nil {
		return classifyRunError(err)
	}

	rebuild := func(ctx context.Context) {
		res, err := runPipeline(ctx, cfg, root, logger, *globals)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("watch.rebuild.error", "err", err)
			if !globals.JSON {
				ui.Errorf("Rebuild failed: %v", err)
			}
			return
		}
		if globals.JSON {
			_ = output.JSONCompactTo(stdout, res.Summary)
			return
		}
		_ = printResult(stdout, root, res, *globals)
		ui.Infof("Watching %s for changes", root)
	}

	rebuild(ctx)
	if ctx.Err() != nil {
		return nil
	}

	onEvent := func(ev fsnotify.Event) {
		if ev.Has(fsnotify.Create) && filter.isDir(ev.Name) {
			if err := addWatchDirs(watcher, ev.Name, filter, logger); err != nil {
				logger.Warn("watch.add.error", "path", ev.Name, "err", err)
			}
		}
	}
	watchLoop(ctx, watcher.Events, watcher.Errors, filter, *debounce, onEvent, rebuild, logger)
	return nil
}

// changeFilter decides which file system events trigger a rebuild.
type changeFilter struct {
	root      string
	outputDir string
	skipDirs  map[string]struct{}
	globs     []glob.Glob
}

func newChangeFilter(root string, cfg ingestion.Config) (*changeFilter, error) {
	outDir := cfg.Export.OutputDir
	if outDir == "" {
		outDir = export.DefaultOutputDir
	}
	f := &changeFilter{
		root:      root,
		outputDir: filepath.ToSlash(outDir),
		skipDirs:  make(map[string]struct{}, len(cfg.Scan.SkipDirs)),
	}
	for _, d := range cfg.Scan.SkipDirs {
		f.skipDirs[d] = struct{}{}
	}
	for _, pattern := range cfg.Scan.ExcludeGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, &ingestion.ValidationError{Field: "scan.exclude_globs", Reason: fmt.Sprintf("%q: %v", pattern, err)}
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// rel returns the slash-separated repo-relative path, or false when path is
// outside the root.
func (f *changeFilter) rel(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// skipDir reports whether a directory is pruned from watching.
func (f *changeFilter) skipDir(path string) bool {
	rel, ok := f.rel(path)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	if rel == f.outputDir || strings.HasPrefix(rel, f.outputDir+"/") {
		return true
	}
	if _, skip := f.skipDirs[filepath.Base(path)]; skip {
		return true
	}
	return f.excluded(rel)
}

func (f *changeFilter) excluded(rel string) bool {
	for _, g := range f.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// relevant reports whether an event on path should schedule a rebuild.
func (f *changeFilter) relevant(path string) bool {
	rel, ok := f.rel(path)
	if !ok || rel == "." {
		return false
	}
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if dir == f.root || dir == filepath.Dir(dir) {
			break
		}
		if f.skipDir(dir) {
			return false
		}
	}
	if rel == f.outputDir || strings.HasPrefix(rel, f.outputDir+"/") {
		return false
	}
	return !f.excluded(rel)
}

func (f *changeFilter) isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir() && !f.skipDir(path)
}

// addWatchDirs registers dir and every non-pruned directory below it.
func addWatchDirs(w *fsnotify.Watcher, dir string, f *changeFilter, logger *slog.Logger) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			logger.Warn("watch.walk.error", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && f.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		logger.Debug("watch.add", "path", path)
		return nil
	})
}

// watchLoop calls rebuild once per burst of relevant events, after wait has
// passed without another one. It returns when ctx is done or the event
// channel closes.
func watchLoop(
	ctx context.Context,
	events <-chan fsnotify.Event,
	errs <-chan error,
	filter *changeFilter,
	wait time.Duration,
	onEvent func(fsnotify.Event),
	rebuild func(context.Context),
	logger *slog.Logger,
) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if onEvent != nil {
				onEvent(ev)
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !filter.relevant(ev.Name) {
				continue
			}
			logger.Debug("watch.event", "op", ev.Op.String(), "path", ev.Name)
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "err", err)
		case <-fire:
			fire = nil
			logger.Info("watch.rebuild")
			rebuild(ctx)
		}
	}
}

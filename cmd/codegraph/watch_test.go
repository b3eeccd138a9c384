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
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgtest "github.com/kraklabs/codegraph/internal/testing"
	"github.com/kraklabs/codegraph/pkg/ingestion"
)

func testFilter(t *testing.T, root string, excludes ...string) *changeFilter {
	t.Helper()
	cfg := ingestion.DefaultConfig()
	cfg.Scan.ExcludeGlobs = excludes
	f, err := newChangeFilter(root, cfg)
	require.NoError(t, err)
	return f
}

func TestChangeFilter(t *testing.T) {
	root := t.TempDir()
	f := testFilter(t, root, "test/**")

	tests := []struct {
		rel  string
		want bool
	}{
		{"lib/a.dart", true},
		{"pubspec.yaml", true},
		{"graphs_data/20260101_000000/summary.json", false},
		{"node_modules/x/index.js", false},
		{"packages/core/build/gen.dart", false},
		{"test/widget_test.dart", false},
		{".git/index", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, f.relevant(filepath.Join(root, filepath.FromSlash(tt.rel))))
		})
	}

	assert.False(t, f.relevant(root))
	assert.False(t, f.relevant(filepath.Join(filepath.Dir(root), "elsewhere.dart")))
	assert.True(t, f.skipDir(filepath.Join(root, "graphs_data")))
	assert.False(t, f.skipDir(root))
}

func TestNewChangeFilter_BadGlob(t *testing.T) {
	cfg := ingestion.DefaultConfig()
	cfg.Scan.ExcludeGlobs = []string{"[x"}
	_, err := newChangeFilter(t.TempDir(), cfg)
	var ve *ingestion.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestAddWatchDirs(t *testing.T) {
	root := cgtest.WriteRepo(t, map[string]string{
		"lib/src/a.dart":      "class A {}\n",
		"node_modules/x/y.js": "x",
		"build/out.dart":      "class O {}\n",
	})
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, addWatchDirs(w, root, testFilter(t, root), cgtest.DiscardLogger()))
	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "lib"),
		filepath.Join(root, "lib", "src"),
	}, w.WatchList())
}

func TestWatchLoop_Debounce(t *testing.T) {
	root := t.TempDir()
	filter := testFilter(t, root)
	events := make(chan fsnotify.Event)
	errs := make(chan error)

	var rebuilds, seen atomic.Int32
	rebuilt := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(ctx, events, errs, filter, 30*time.Millisecond,
			func(fsnotify.Event) { seen.Add(1) },
			func(context.Context) {
				rebuilds.Add(1)
				rebuilt <- struct{}{}
			},
			cgtest.DiscardLogger())
	}()

	file := filepath.Join(root, "lib", "a.dart")
	for i := 0; i < 5; i++ {
		events <- fsnotify.Event{Name: file, Op: fsnotify.Write}
	}
	events <- fsnotify.Event{Name: filepath.Join(root, "graphs_data", "x"), Op: fsnotify.Create}
	events <- fsnotify.Event{Name: file, Op: fsnotify.Chmod}
	errs <- assert.AnError

	select {
	case <-rebuilt:
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild after a burst of events")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), rebuilds.Load(), "one rebuild per burst")
	assert.Equal(t, int32(7), seen.Load())

	events <- fsnotify.Event{Name: file, Op: fsnotify.Remove}
	select {
	case <-rebuilt:
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild after the second burst")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchLoop did not stop on cancel")
	}
	assert.Equal(t, int32(2), rebuilds.Load())
}

func TestWatchLoop_ClosedEvents(t *testing.T) {
	events := make(chan fsnotify.Event)
	close(events)
	watchLoop(context.Background(), events, nil, testFilter(t, t.TempDir()), time.Millisecond,
		nil, func(context.Context) { t.Error("unexpected rebuild") }, cgtest.DiscardLogger())
}

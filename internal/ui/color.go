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

// Package ui provides terminal output helpers for the codegraph CLI.
//
// Colors respect the --no-color flag and the NO_COLOR environment variable,
// and are disabled by fatih/color when stdout is not a TTY.
//
// Color usage:
//   - Red: errors, failed runs
//   - Yellow: warnings, isolated extraction errors
//   - Green: completed runs
//   - Cyan: counts and informational messages
//   - Bold: headers and labels
//   - Dim: paths
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	// Red is used for error messages and failures.
	Red = color.New(color.FgRed)

	// Yellow is used for warnings.
	Yellow = color.New(color.FgYellow)

	// Green is used for success messages.
	Green = color.New(color.FgGreen)

	// Cyan is used for counts and informational messages.
	Cyan = color.New(color.FgCyan)

	// Bold is used for headers and labels.
	Bold = color.New(color.Bold)

	// Dim is used for paths.
	Dim = color.New(color.Faint)
)

var out io.Writer = os.Stdout

// SetOutput redirects every helper in this package. Nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// InitColors configures global color output. Call it right after flag
// parsing so every helper honors --no-color.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Success prints a green message with a checkmark prefix.
//
// Example output: "✓ Wrote graphs_data/20260506_070809"
func Success(msg string) {
	_, _ = Green.Fprintln(out, "✓ "+msg)
}

// Successf is the formatted form of Success.
func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(out, "✓ "+format+"\n", args...)
}

// Warning prints a yellow message with a warning prefix.
func Warning(msg string) {
	_, _ = Yellow.Fprintln(out, "⚠ "+msg)
}

// Warningf is the formatted form of Warning.
func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(out, "⚠ "+format+"\n", args...)
}

// Error prints a red message with an X prefix.
func Error(msg string) {
	_, _ = Red.Fprintln(out, "✗ "+msg)
}

// Errorf is the formatted form of Error.
func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(out, "✗ "+format+"\n", args...)
}

// Info prints a cyan message with an info prefix.
func Info(msg string) {
	_, _ = Cyan.Fprintln(out, "ℹ "+msg)
}

// Infof is the formatted form of Info.
func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(out, "ℹ "+format+"\n", args...)
}

// Header prints a bold header underlined with '='.
//
//	Run Summary
//	===========
func Header(text string) {
	_, _ = Bold.Fprintln(out, text)
	fmt.Fprintln(out, strings.Repeat("=", len(text)))
}

// SubHeader prints a bold header without an underline.
func SubHeader(text string) {
	_, _ = Bold.Fprintln(out, text)
}

// Label returns a bold string for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dim string for paths and other secondary text.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a cyan count for statistics display.
func CountText(count int) string {
	return Cyan.Sprint(count)
}

// Counts prints one indented "name: count" line per entry, sorted by name.
// Empty maps print nothing.
func Counts[K ~string](title string, counts map[K]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	SubHeader(title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s %s\n", Label(k+":"), CountText(counts[K(k)]))
	}
}

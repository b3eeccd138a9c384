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

// Package errors provides structured CLI errors for codegraph.
//
// A UserError tells the user what went wrong, why, and how to fix it, and
// carries the process exit code:
//
//	err := errors.NewConfigError(
//	    "Cannot load codegraph configuration",
//	    "codegraph.yaml: chunk.overlap_lines must be below max_chunk_lines",
//	    "Lower chunk.overlap_lines or raise chunk.max_chunk_lines",
//	    underlyingErr,
//	)
//	errors.FatalError(err, false)
//
// # Formatted Output
//
// Format renders colored terminal output:
//
//	Error: Cannot load codegraph configuration
//	Cause: codegraph.yaml: chunk.overlap_lines must be below max_chunk_lines
//	Fix:   Lower chunk.overlap_lines or raise chunk.max_chunk_lines
//
// ToJSON renders the same information for --json mode.
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (unreadable or invalid config)
//   - ExitInput (4): Invalid user input (bad arguments, unknown command)
//   - ExitPermission (5): Permission denied (output directory not writable)
//   - ExitNotFound (6): Resource not found (repository root, run directory)
//   - ExitPipeline (7): A pipeline run failed (scan or export)
//   - ExitInternal (10): Internal errors (bugs, panics)
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitConfig indicates configuration errors.
	ExitConfig = 1

	// ExitInput indicates invalid user input (bad arguments, unknown command).
	ExitInput = 4

	// ExitPermission indicates the output could not be written.
	ExitPermission = 5

	// ExitNotFound indicates a missing repository root or run directory.
	ExitNotFound = 6

	// ExitPipeline indicates a run that aborted during scan or export.
	ExitPipeline = 7

	// ExitInternal indicates internal errors (bugs, unexpected panics).
	// Exit code 10 signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the process exit code for this error.
	ExitCode int

	// Err is the underlying error, if any. It keeps errors.Is/As working.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: code,
		Err:      err,
	}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
//
// Use this when codegraph.yaml cannot be read, does not parse, or fails
// validation, and when a CODEGRAPH_* override is not an integer.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewInputError creates an input validation error with exit code ExitInput.
// Input errors do not wrap an underlying error.
//
// Example:
//
//	return NewInputError(
//	    "Unknown command: idx",
//	    "",
//	    "Run 'codegraph --help' to list commands",
//	)
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewPermissionError creates a permission error with exit code ExitPermission.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError creates a not found error with exit code ExitNotFound.
//
// Example:
//
//	return NewNotFoundError(
//	    "No complete run found",
//	    "graphs_data/ has no run directory with a summary.json",
//	    "Run 'codegraph index' first",
//	)
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewPipelineError creates a run failure with exit code ExitPipeline.
func NewPipelineError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitPipeline, msg, cause, fix, err)
}

// NewInternalError creates an internal error with exit code ExitInternal.
// Internal errors indicate bugs and should be reported.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// Colors are dropped when noColor is set or NO_COLOR is present in the
// environment. Empty Cause or Fix lines are omitted.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// Report writes err to w and returns the exit code it maps to. UserErrors
// anywhere in the chain keep their code; anything else is ExitInternal.
func Report(w io.Writer, err error, jsonOutput, noColor bool) int {
	if err == nil {
		return ExitSuccess
	}

	var ue *UserError
	if !stderrors.As(err, &ue) {
		ue = NewInternalError(err.Error(), "", "", err)
	}
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		// we are about to exit; the code matters more than the body
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(noColor))
	}
	return ue.ExitCode
}

// FatalError prints the error to stderr and exits with its code.
//
// This function never returns when err is non-nil.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err, jsonOutput, false))
}

// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output writes machine-readable CLI output for --json mode.
//
// Human-readable output lives in internal/ui and error rendering in
// internal/errors. Every codegraph command that supports --json prints
// exactly one JSON document on stdout:
//
//	if globals.JSON {
//	    return output.JSON(res.Summary)
//	}
//
// The watch command emits one compact document per completed run so the
// stream can be consumed line by line:
//
//	_ = output.JSONCompact(res.Summary)
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSON writes data as 2-space indented JSON to stdout.
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as 2-space indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// JSONCompact writes data as a single JSON line to stdout.
func JSONCompact(data any) error {
	return JSONCompactTo(os.Stdout, data)
}

// JSONCompactTo writes data as a single JSON line to w.
func JSONCompactTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// PathResult is the --json shape of commands that report a single path.
type PathResult struct {
	Path string `json:"path"`
}

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
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/pkg/export"
	"github.com/kraklabs/codegraph/pkg/ingestion"
)

// DefaultConfigFile is looked up at the repository root when --config is
// not given.
const DefaultConfigFile = ".codegraph.yaml"

// resolveRoot turns the path argument into an absolute directory.
func resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.NewInputError("Cannot resolve repository path", err.Error(), "")
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return "", errors.NewNotFoundError(
			fmt.Sprintf("Repository not found: %s", abs),
			"the path does not exist",
			"Pass an existing directory, e.g. 'codegraph index ./my-repo'",
		)
	case err != nil:
		return "", errors.NewPermissionError("Cannot access repository", abs, "Check the directory permissions", err)
	case !info.IsDir():
		return "", errors.NewInputError(
			fmt.Sprintf("Not a directory: %s", abs),
			"codegraph indexes whole repositories",
			"Pass the repository root instead of a single file",
		)
	}
	return abs, nil
}

// loadConfig builds the run configuration for root: .env, then the YAML
// file, then CODEGRAPH_* overrides, then validation.
func loadConfig(root string, globals GlobalFlags) (ingestion.Config, error) {
	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return ingestion.Config{}, errors.NewConfigError("Cannot load .env file", envPath,
				"Fix the syntax of the .env file or remove it", err)
		}
	}

	path := globals.ConfigPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, DefaultConfigFile)
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return ingestion.Config{}, errors.NewNotFoundError(
			fmt.Sprintf("Config file not found: %s", path),
			"--config points to a missing file",
			"Create the file or drop --config to use the defaults",
		)
	}

	cfg, err := ingestion.LoadConfigFile(path)
	if err != nil {
		return cfg, errors.NewConfigError("Cannot load codegraph configuration", err.Error(),
			fmt.Sprintf("Check the YAML syntax of %s", path), err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, configError(err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configError(err)
	}
	return cfg, nil
}

func configError(err error) error {
	var ve *ingestion.ValidationError
	if stderrors.As(err, &ve) {
		return errors.NewConfigError(
			"Invalid codegraph configuration",
			ve.Error(),
			fmt.Sprintf("Fix %s in %s or the matching CODEGRAPH_* variable", ve.Field, DefaultConfigFile),
			err,
		)
	}
	return errors.NewConfigError("Invalid codegraph configuration", err.Error(), "", err)
}

// classifyRunError maps pipeline failures onto user-facing errors.
func classifyRunError(err error) error {
	if err == nil {
		return nil
	}
	var ue *errors.UserError
	var ve *ingestion.ValidationError
	switch {
	case stderrors.As(err, &ue):
		return err
	case stderrors.As(err, &ve):
		return configError(err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewPipelineError("Run interrupted", "the run was canceled before summary.json was written",
			"Run the command again; incomplete runs are ignored by 'codegraph latest'", err)
	case stderrors.Is(err, fs.ErrPermission):
		return errors.NewPermissionError("Permission denied", err.Error(),
			"Check read access to the repository and write access to the output directory", err)
	case stderrors.Is(err, export.ErrNoRuns):
		return errors.NewNotFoundError("No complete run found", err.Error(),
			"Run 'codegraph index' first")
	default:
		return errors.NewPipelineError("Pipeline failed", err.Error(), "Re-run with --debug for details", err)
	}
}

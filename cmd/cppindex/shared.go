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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/andreymedv/cppindex/internal/ui"
	"github.com/andreymedv/cppindex/pkg/core"
	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/parser/jsonl"
	"github.com/andreymedv/cppindex/pkg/parser/treesitter"
)

// newLogger builds the slog.Logger every subcommand's Core uses, leveled
// by the global -v/-vv flags and silenced entirely under --quiet/--json.
func newLogger(globals GlobalFlags) *slog.Logger {
	if globals.Quiet {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	level := slog.LevelWarn
	switch globals.Verbose {
	case 1:
		level = slog.LevelInfo
	case 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// defaultCacheRoot mirrors the teacher's ~/.cie/data convention, rooted
// under the new module's own dotdir.
func defaultCacheRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cppindex", "cache"), nil
}

// symbolSource picks the parser.SymbolSource implementation: a pre-parsed
// JSONL dump if --symbols is given (useful for CI fixtures and for
// driving the core without a C++ toolchain on hand), otherwise the
// tree-sitter-cpp best-effort reference implementation.
func symbolSource(symbolsFile string, logger *slog.Logger) (parser.SymbolSource, error) {
	if symbolsFile != "" {
		src, err := jsonl.Load(symbolsFile)
		if err != nil {
			return nil, fmt.Errorf("load symbols file: %w", err)
		}
		return src, nil
	}
	return treesitter.New(logger), nil
}

// newCore constructs an unbound Core. bindProject must be called before
// any query/status method on it will succeed.
func newCore(globals GlobalFlags, symbolsFile string) (*core.Core, error) {
	logger := newLogger(globals)

	cacheRoot := globals.CacheRoot
	if cacheRoot == "" {
		var err error
		cacheRoot, err = defaultCacheRoot()
		if err != nil {
			return nil, err
		}
	}

	source, err := symbolSource(symbolsFile, logger)
	if err != nil {
		return nil, err
	}

	return core.New(core.Config{CacheRoot: cacheRoot, Logger: logger}, source), nil
}

// bindProject runs SetProjectDirectory (the blocking cold/warm bootstrap
// of spec §4.4) against sourceDir.
func bindProject(globals GlobalFlags, c *core.Core, sourceDir, compileCommands string) error {
	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("resolve source dir: %w", err)
	}

	configPath := globals.Config
	if configPath == "" {
		configPath = filepath.Join(absSource, ".cppindex", "project.yaml")
	}

	return c.SetProjectDirectory(context.Background(), absSource, configPath, compileCommands)
}

// buildCore constructs a Core and binds it to sourceDir in one step, for
// subcommands (status, query, refresh, watch) that assume an
// already-indexed project and don't need to stream bootstrap progress.
func buildCore(globals GlobalFlags, sourceDir, symbolsFile, compileCommands string) (*core.Core, error) {
	c, err := newCore(globals, symbolsFile)
	if err != nil {
		return nil, err
	}
	if err := bindProject(globals, c, sourceDir, compileCommands); err != nil {
		return nil, err
	}
	return c, nil
}

// fail prints err and exits 1, honoring --json by emitting a minimal JSON
// error object instead of plain text.
func fail(globals GlobalFlags, err error) {
	if globals.JSON {
		fmt.Printf("{\"error\": %q}\n", err.Error())
	} else {
		ui.Errorf("Error: %v", err)
	}
	os.Exit(1)
}

// printJSON encodes v to stdout as indented JSON.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

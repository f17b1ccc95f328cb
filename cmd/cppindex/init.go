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
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
	"github.com/andreymedv/cppindex/pkg/identity"
)

// runInit writes a fresh .cppindex/project.yaml for sourceDir, seeded
// with identity.DefaultConfig and overridden by any flags given. It does
// not index anything — that is "cppindex index"'s job.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory to index")
	compileCommands := fs.String("compile-commands", "", "Path to compile_commands.json")
	includeDeps := fs.Bool("include-dependencies", false, "Track file_dependencies for transitive-consumer refresh expansion")
	policy := fs.String("policy", "allow_partial", "Query behavior policy while indexing: allow_partial|block|reject")
	force := fs.Bool("force", false, "Overwrite an existing project.yaml")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex init [options]

Creates .cppindex/project.yaml under the source directory, seeded with
the default indexing/query configuration.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	absSource, err := filepath.Abs(*source)
	if err != nil {
		fail(globals, err)
	}
	cfgPath := filepath.Join(absSource, ".cppindex", "project.yaml")

	if _, err := os.Stat(cfgPath); err == nil && !*force {
		fail(globals, fmt.Errorf("%s already exists; pass --force to overwrite", cfgPath))
	}

	cfg := identity.DefaultConfig(absSource)
	cfg.Project.CompileCommands = *compileCommands
	cfg.Project.IncludeDependencies = *includeDeps
	cfg.Query.BehaviorPolicy = *policy

	if err := identity.Save(cfgPath, cfg); err != nil {
		fail(globals, err)
	}

	if globals.JSON {
		fmt.Printf("{\"config_path\": %q}\n", cfgPath)
		return
	}
	ui.Header("cppindex project initialized")
	fmt.Printf("%s %s\n", ui.Label("Config:"), cfgPath)
	fmt.Printf("%s %s\n", ui.Label("Source:"), absSource)
	ui.Info("Run 'cppindex index' to build the index.")
}

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
	"os"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
)

// runRefresh forces an incremental refresh (hash-diff, dependency
// fan-out, delete-then-reparse of changed files, per spec §4.4) against
// an already-bootstrapped project.
func runRefresh(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory of the already-indexed project")
	symbolsFile := fs.String("symbols", "", "Pre-parsed JSONL symbols dump, instead of invoking a parser")
	compileCommands := fs.String("compile-commands", "", "Path to compile_commands.json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex refresh [options]

Runs an incremental refresh against an already-indexed project: changed
files are re-hashed, re-parsed, and their transitive dependents expanded
per project.yaml's include_dependencies setting.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	c, err := buildCore(globals, *source, *symbolsFile, *compileCommands)
	if err != nil {
		fail(globals, err)
	}

	if err := c.RefreshProject(context.Background()); err != nil {
		fail(globals, err)
	}

	status, err := c.GetServerStatus(context.Background())
	if err != nil {
		fail(globals, err)
	}

	if globals.JSON {
		printJSON(status)
		return
	}
	ui.Header("Refresh complete")
	fmt.Printf("%s %s\n", ui.Label("State:"), status.State)
	fmt.Printf("%s %s\n", ui.Label("Symbols:"), ui.CountText(int(status.SymbolCount)))
}

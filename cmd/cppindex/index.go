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
	"time"

	flag "github.com/spf13/pflag"
	"github.com/schollz/progressbar/v3"

	"github.com/andreymedv/cppindex/internal/ui"
	"github.com/andreymedv/cppindex/pkg/core"
)

// runIndex builds (or, if the stored cache metadata already matches,
// simply opens) the index for a source tree, per spec §4.4's
// cold/warm bootstrap path. A progress bar tracks files parsed while the
// bootstrap runs, unless --quiet/--json suppress it.
func runIndex(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory to index")
	symbolsFile := fs.String("symbols", "", "Pre-parsed JSONL symbols dump, instead of invoking a parser")
	compileCommands := fs.String("compile-commands", "", "Path to compile_commands.json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex index [options]

Builds the index for a source tree. If a cache for the same source dir and
config already exists and its recorded config and compile-commands paths,
their modification times and the include_dependencies setting all still
match, this is a no-op warm open; otherwise it runs a full cold build.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	c, err := newCore(globals, *symbolsFile)
	if err != nil {
		fail(globals, err)
	}

	done := make(chan error, 1)
	go func() { done <- bindProject(globals, c, *source, *compileCommands) }()

	if !globals.Quiet {
		watchIndexingProgress(globals, c, done)
	} else if err := <-done; err != nil {
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
	ui.Header("Index built")
	fmt.Printf("%s %s\n", ui.Label("State:"), status.State)
	fmt.Printf("%s %s\n", ui.Label("Symbols:"), ui.CountText(int(status.SymbolCount)))
}

// watchIndexingProgress polls GetIndexingStatus until bindProject's result
// arrives on done, driving a progressbar.v3 bar from the reported file counts.
// Early polls race SetProjectDirectory's own setup and see ErrNoProject;
// those are expected and simply retried.
func watchIndexingProgress(globals GlobalFlags, c *core.Core, done <-chan error) {
	bar := progressbar.NewOptions64(0,
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			_ = bar.Finish()
			if err != nil {
				fail(globals, err)
			}
			return
		case <-ticker.C:
			st, err := c.GetIndexingStatus(context.Background())
			if err != nil {
				continue
			}
			bar.ChangeMax64(st.Progress.TotalFiles)
			_ = bar.Set64(st.Progress.IndexedFiles)
		}
	}
}

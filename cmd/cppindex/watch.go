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
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
)

// runWatch binds the project, then blocks watching its source tree,
// running an incremental refresh a debounce period after each batch of
// file changes settles, until interrupted.
func runWatch(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory of the project")
	symbolsFile := fs.String("symbols", "", "Pre-parsed JSONL symbols dump, instead of invoking a parser")
	compileCommands := fs.String("compile-commands", "", "Path to compile_commands.json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex watch [options]

Binds the project (building the index if needed), then watches its
source tree and runs an incremental refresh a couple of seconds after
each batch of file changes settles. Runs until interrupted (Ctrl-C).

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

	if !globals.Quiet {
		ui.Info(fmt.Sprintf("Watching %s for changes (Ctrl-C to stop)...", *source))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.WatchAndRefresh(ctx); err != nil && ctx.Err() == nil {
		fail(globals, err)
	}
	if !globals.Quiet {
		ui.Info("Stopped.")
	}
}

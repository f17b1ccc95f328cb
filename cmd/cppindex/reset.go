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
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
	"github.com/andreymedv/cppindex/pkg/identity"
)

// runReset deletes the cache directory derived from (source dir, config
// path) — the project's entire stored index — without touching the
// source tree or project.yaml itself.
func runReset(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory of the project")
	yes := fs.BoolP("yes", "y", false, "Skip the confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex reset [options]

Deletes the project's cache directory (all indexed symbols, call sites,
type aliases, and cache metadata). The source tree and project.yaml are
left untouched; the next 'cppindex index' runs a full cold build.

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
	configPath := globals.Config
	if configPath == "" {
		configPath = filepath.Join(absSource, ".cppindex", "project.yaml")
	}
	id, err := identity.Derive(absSource, configPath)
	if err != nil {
		fail(globals, err)
	}

	cacheRoot := globals.CacheRoot
	if cacheRoot == "" {
		cacheRoot, err = defaultCacheRoot()
		if err != nil {
			fail(globals, err)
		}
	}
	cacheDir := identity.CachePath(cacheRoot, id)

	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		if globals.JSON {
			printJSON(map[string]string{"cache_dir": cacheDir, "status": "nothing_to_remove"})
			return
		}
		ui.Info(fmt.Sprintf("No cache directory at %s.", cacheDir))
		return
	}

	if !*yes && !globals.Quiet {
		ui.Warningf("This will permanently delete %s.", cacheDir)
		fmt.Fprint(os.Stderr, "Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if line != "y\n" && line != "Y\n" && line != "yes\n" {
			ui.Info("Aborted.")
			return
		}
	}

	if err := os.RemoveAll(cacheDir); err != nil {
		fail(globals, err)
	}

	if globals.JSON {
		printJSON(map[string]string{"cache_dir": cacheDir, "status": "removed"})
		return
	}
	ui.Header("Cache removed")
	fmt.Printf("%s %s\n", ui.Label("Removed:"), cacheDir)
}

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

// Package main implements the cppindex CLI: a local driver for the
// code-intelligence core that indexes a C++ source tree and answers the
// query surface spec §4.5 describes, all in-process (no RPC/transport
// layer; that is a separate concern left to whatever embeds pkg/core).
//
// Usage:
//
//	cppindex init                 Create .cppindex/project.yaml
//	cppindex index                Build or refresh the index (cold/warm path)
//	cppindex refresh              Force an incremental refresh
//	cppindex status               Show server + indexing status
//	cppindex query <op> [args]    Run one query operation
//	cppindex watch                Watch the source tree and auto-refresh
//	cppindex reset                Delete the project's cache directory
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds flags shared by every subcommand.
type GlobalFlags struct {
	JSON      bool
	NoColor   bool
	Verbose   int
	Quiet     bool
	Config    string
	CacheRoot string
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .cppindex/project.yaml (default: <source-dir>/.cppindex/project.yaml)")
		cacheRoot   = flag.String("cache-root", "", "Root directory for per-project cache dirs (default: $HOME/.cppindex/cache)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cppindex - C++ code intelligence index

Usage:
  cppindex <command> [options]

Commands:
  init       Create .cppindex/project.yaml
  index      Build or refresh the index for the current source tree
  refresh    Force an incremental refresh of an already-indexed project
  status     Show server and indexing status
  query      Run one query operation against the index
  watch      Watch the source tree and auto-refresh on changes
  reset      Delete the project's cache directory (destructive)

Global Options:
  --json             Output in JSON format
  --no-color         Disable color output (respects NO_COLOR env var)
  -v, --verbose      Increase verbosity (-v for info, -vv for debug)
  -q, --quiet        Suppress non-essential output
  -c, --config       Path to .cppindex/project.yaml
  --cache-root       Root directory for per-project cache dirs
  -V, --version      Show version and exit

Examples:
  cppindex init --source .
  cppindex index --source .
  cppindex status --json
  cppindex query search_classes Widget
  cppindex query find_callers "ns::Widget::Resize"

For detailed command help: cppindex <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cppindex version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}
	if *jsonOutput {
		*quiet = true
	}
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	globals := GlobalFlags{
		JSON:      *jsonOutput,
		NoColor:   *noColor,
		Verbose:   *verbose,
		Quiet:     *quiet,
		Config:    *configPath,
		CacheRoot: *cacheRoot,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, globals)
	case "refresh":
		runRefresh(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "watch":
		runWatch(cmdArgs, globals)
	case "reset":
		runReset(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

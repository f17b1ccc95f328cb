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
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/andreymedv/cppindex/internal/ui"
	"github.com/andreymedv/cppindex/pkg/core"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/storage"
)

// runQuery dispatches one query operation against an already-indexed
// project, printing the resulting envelope (spec §4.6's "silence =
// success" contract: a nil metadata block means a normal, complete
// result, so --json output with no "metadata" key is itself meaningful).
func runQuery(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory of the project")
	symbolsFile := fs.String("symbols", "", "Pre-parsed JSONL symbols dump, instead of invoking a parser")
	maxResults := fs.Int("max-results", 0, "Cap the number of results returned (0 = unbounded)")
	fileName := fs.String("file", "", "Restrict to symbols in a matching file")
	namespace := fs.String("namespace", "", "Restrict to a namespace")
	className := fs.String("class", "", "Restrict to a parent class")
	signature := fs.String("signature", "", "Substring match against the signature")
	projectOnly := fs.Bool("project-only", false, "Restrict to project (non-dependency) symbols")
	maxNodes := fs.Int("max-nodes", 0, "Cap the number of hierarchy/call-graph nodes (0 = default)")
	maxDepth := fs.Int("max-depth", 0, "Cap traversal depth (0 = unbounded, except get_call_path)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex query <operation> <args...> [options]

Operations:
  search_classes <pattern>
  search_functions <pattern>
  search_symbols <pattern>
  get_class_info <name>
  get_function_signature <name>
  get_type_alias_info <name>
  find_in_file <file-pattern>
  get_files_containing_symbol <name>
  get_class_hierarchy <class-name>
  find_callers <target>
  find_callees <target>
  get_call_sites <target>
  get_call_path <from> <to> [max-depth]

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		os.Exit(1)
	}
	op, opArgs := rest[0], rest[1:]

	c, err := buildCore(globals, *source, *symbolsFile, "")
	if err != nil {
		fail(globals, err)
	}
	ctx := context.Background()

	filters := storage.SearchFilters{
		ProjectOnly:      *projectOnly,
		FileName:         *fileName,
		ClassName:        *className,
		SignaturePattern: *signature,
		MaxResults:       *maxResults,
	}
	// --namespace "" is a deliberate request for the global namespace only;
	// the flag must be omitted entirely (not just left at its default) for
	// the filter to stay unset.
	if fs.Changed("namespace") {
		filters.Namespace = namespace
	}

	env, err := dispatchQuery(ctx, c, op, opArgs, filters, *maxNodes, *maxDepth)
	if err != nil {
		fail(globals, err)
	}

	if globals.JSON {
		printJSON(env)
		return
	}
	printEnvelope(op, env)
}

func dispatchQuery(ctx context.Context, c *core.Core, op string, args []string, filters storage.SearchFilters, maxNodes, maxDepth int) (state.Envelope, error) {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	switch op {
	case "search_classes":
		return c.SearchClasses(ctx, arg(0), filters)
	case "search_functions":
		return c.SearchFunctions(ctx, arg(0), filters)
	case "search_symbols":
		return c.SearchSymbols(ctx, arg(0), filters)
	case "get_class_info":
		return c.GetClassInfo(ctx, arg(0))
	case "get_function_signature":
		return c.GetFunctionSignature(ctx, arg(0))
	case "get_type_alias_info":
		return c.GetTypeAliasInfo(ctx, arg(0))
	case "find_in_file":
		return c.FindInFile(ctx, arg(0))
	case "get_files_containing_symbol":
		return c.GetFilesContainingSymbol(ctx, arg(0))
	case "get_class_hierarchy":
		return c.GetClassHierarchy(ctx, arg(0), maxNodes, maxDepth)
	case "find_callers":
		return c.FindCallers(ctx, arg(0))
	case "find_callees":
		return c.FindCallees(ctx, arg(0))
	case "get_call_sites":
		return c.GetCallSites(ctx, arg(0))
	case "get_call_path":
		depth := maxDepth
		if depth == 0 && len(args) > 2 {
			if d, err := strconv.Atoi(args[2]); err == nil {
				depth = d
			}
		}
		return c.GetCallPath(ctx, arg(0), arg(1), depth)
	default:
		return state.Envelope{}, fmt.Errorf("unknown query operation %q", op)
	}
}

// printEnvelope prints a human-readable summary: the metadata status
// line (if any), then the data's Go-default formatting. Exact field
// layout is deliberately terse; --json is the way to get the full shape.
func printEnvelope(op string, env state.Envelope) {
	ui.Header(fmt.Sprintf("query %s", op))
	if env.Metadata != nil {
		fmt.Printf("%s %s\n", ui.Label("Status:"), env.Metadata.Status)
		if env.Metadata.Warning != "" {
			ui.Warning(env.Metadata.Warning)
		}
		for _, s := range env.Metadata.Suggestions {
			fmt.Printf("  suggestion: %s\n", s)
		}
		if env.Metadata.Fallback != nil {
			fmt.Printf("  fallback: %+v\n", env.Metadata.Fallback)
		}
		if env.Metadata.TotalMatches > 0 {
			fmt.Printf("%s %d (showing %d)\n", ui.Label("Total matches:"), env.Metadata.TotalMatches, env.Metadata.Returned)
		}
		fmt.Println()
	}
	fmt.Printf("%+v\n", env.Data)
}

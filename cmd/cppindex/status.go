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
	"github.com/andreymedv/cppindex/pkg/storage"
)

// runStatus reports server status (state, active backend, error rate,
// symbol count, recent tool calls), indexing progress, and backend
// health for an already-bound project.
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	source := fs.StringP("source", "s", ".", "Source directory of the project")
	symbolsFile := fs.String("symbols", "", "Pre-parsed JSONL symbols dump, instead of invoking a parser")
	health := fs.Bool("health", false, "Also report backend health (integrity, size, FTS parity)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cppindex status [options]

Reports server state, active backend, error rate, symbol count, and
recent tool-call activity for a project. Add --health for backend
maintenance signals (spec §4.1).

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	c, err := buildCore(globals, *source, *symbolsFile, "")
	if err != nil {
		fail(globals, err)
	}

	ctx := context.Background()
	status, err := c.GetServerStatus(ctx)
	if err != nil {
		fail(globals, err)
	}

	var healthStatus *storage.HealthStatus
	if *health {
		healthStatus, err = c.GetHealthStatus(ctx)
		if err != nil {
			fail(globals, err)
		}
	}

	if globals.JSON {
		out := struct {
			Server any `json:"server"`
			Health any `json:"health,omitempty"`
		}{Server: status}
		if healthStatus != nil {
			out.Health = healthStatus
		}
		printJSON(out)
		return
	}

	ui.Header("cppindex status")
	fmt.Printf("%s %s\n", ui.Label("State:"), status.State)
	fmt.Printf("%s %s\n", ui.Label("Project:"), ui.DimText(status.ProjectDir))
	fmt.Printf("%s %v\n", ui.Label("On secondary backend:"), status.OnSecondary)
	fmt.Printf("%s %.4f\n", ui.Label("Error rate:"), status.ErrorRate)
	fmt.Printf("%s %s\n", ui.Label("Symbols:"), ui.CountText(int(status.SymbolCount)))

	if len(status.RecentCalls) > 0 {
		fmt.Println()
		ui.SubHeader("Recent calls:")
		for i, call := range status.RecentCalls {
			if i >= 10 {
				break
			}
			errSuffix := ""
			if call.Err != "" {
				errSuffix = fmt.Sprintf(" (error: %s)", call.Err)
			}
			fmt.Printf("  %-28s %4dms%s\n", call.Tool, call.DurationMS, errSuffix)
		}
	}

	if healthStatus != nil {
		fmt.Println()
		ui.SubHeader("Backend health:")
		fmt.Printf("  Integrity OK:    %v\n", healthStatus.IntegrityOK)
		fmt.Printf("  Size:            %d bytes\n", healthStatus.SizeBytes)
		fmt.Printf("  FTS parity:      %v\n", healthStatus.FTSCountMatches)
		fmt.Printf("  Journal mode:    %s\n", healthStatus.JournalMode)
		for _, w := range healthStatus.Warnings {
			ui.Warningf("warning: %s", w)
		}
		for _, e := range healthStatus.Errors {
			ui.Errorf("error: %s", e)
		}
	}
}

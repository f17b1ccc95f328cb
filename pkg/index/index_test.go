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

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

func TestDedupSymbolsKeepsRicherDefinition(t *testing.T) {
	thin := symbol.Symbol{USR: "u:Widget", Name: "Widget", File: "widget.h", StartLine: 10, EndLine: 11}
	rich := symbol.Symbol{USR: "u:Widget", Name: "Widget", File: "widget.cpp", StartLine: 10, EndLine: 40, BaseClasses: []string{"Base"}}

	results := []*parser.Result{
		{Symbols: []symbol.Symbol{thin}},
		{Symbols: []symbol.Symbol{rich}},
	}
	out := dedupSymbols(results)
	if len(out) != 1 {
		t.Fatalf("got %d symbols, want 1 (deduped by USR)", len(out))
	}
	if out[0].File != "widget.cpp" {
		t.Errorf("expected the richer definition (with base classes) to win, got %+v", out[0])
	}
}

func TestDedupSymbolsPreservesFirstSeenOrder(t *testing.T) {
	results := []*parser.Result{
		{Symbols: []symbol.Symbol{{USR: "u:B", Name: "B"}, {USR: "u:A", Name: "A"}}},
	}
	out := dedupSymbols(results)
	if len(out) != 2 || out[0].USR != "u:B" || out[1].USR != "u:A" {
		t.Fatalf("got %+v, want order preserved as [u:B, u:A]", out)
	}
}

func TestDedupSymbolsSkipsNilResults(t *testing.T) {
	out := dedupSymbols([]*parser.Result{nil, {Symbols: []symbol.Symbol{{USR: "u:A"}}}, nil})
	if len(out) != 1 {
		t.Fatalf("got %d symbols, want 1 (nil parse results skipped)", len(out))
	}
}

func TestBuildCacheMetadataStampsMtimes(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "project.yaml")
	if err := os.WriteFile(configPath, []byte("project: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cm, err := buildCacheMetadata(configPath, "", true)
	if err != nil {
		t.Fatalf("buildCacheMetadata: %v", err)
	}
	if !cm.IncludeDependencies {
		t.Error("expected IncludeDependencies to carry through")
	}
	if cm.ConfigMTime == 0 {
		t.Error("expected a non-zero config mtime for an existing file")
	}
	if cm.CompileCommandsMTime != 0 {
		t.Error("expected zero compile-commands mtime when no path given")
	}
}

func TestBuildCacheMetadataMatchesIgnoresMissingFile(t *testing.T) {
	cm, err := buildCacheMetadata("/nonexistent/project.yaml", "/nonexistent/compile_commands.json", false)
	if err != nil {
		t.Fatalf("buildCacheMetadata should not error on a missing file, got %v", err)
	}
	if cm.ConfigMTime != 0 || cm.CompileCommandsMTime != 0 {
		t.Errorf("expected zero mtimes for nonexistent files, got %+v", cm)
	}
}

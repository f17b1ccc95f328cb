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
	"os"
	"path/filepath"
	"testing"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// writeJSONLFixture writes a one-line-per-result JSONL dump describing a
// single C++ class, suitable for pkg/parser/jsonl.Load.
func writeJSONLFixture(t *testing.T, dir, relPath string, syms ...symbol.Symbol) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, relPath), []byte("// fixture source\n"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	result := parser.Result{
		File:    symbol.FileMetadata{FilePath: relPath, Success: true, SymbolCount: len(syms)},
		Symbols: syms,
	}
	line, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	jsonlPath := filepath.Join(dir, "symbols.jsonl")
	if err := os.WriteFile(jsonlPath, append(line, '\n'), 0o644); err != nil {
		t.Fatalf("write jsonl fixture: %v", err)
	}
	return jsonlPath
}

func TestDispatchQuerySearchClasses(t *testing.T) {
	srcDir := t.TempDir()
	jsonlPath := writeJSONLFixture(t, srcDir, "widget.cpp", symbol.Symbol{
		USR: "u:Widget", Name: "Widget", QualifiedName: "app::Widget",
		Namespace: "app", Kind: symbol.KindClass, File: "widget.cpp", IsProject: true,
	})

	globals := GlobalFlags{CacheRoot: t.TempDir()}
	c, err := buildCore(globals, srcDir, jsonlPath, "")
	if err != nil {
		t.Fatalf("buildCore: %v", err)
	}

	env, err := dispatchQuery(context.Background(), c, "search_classes", []string{"Widget"}, storage.SearchFilters{}, 0, 0)
	if err != nil {
		t.Fatalf("dispatchQuery: %v", err)
	}
	syms, ok := env.Data.([]symbol.Symbol)
	if !ok || len(syms) != 1 {
		t.Fatalf("got %+v, want exactly one Widget class", env.Data)
	}
	if syms[0].QualifiedName != "app::Widget" {
		t.Errorf("got %q, want app::Widget", syms[0].QualifiedName)
	}
}

func TestDispatchQueryUnknownOperation(t *testing.T) {
	srcDir := t.TempDir()
	jsonlPath := writeJSONLFixture(t, srcDir, "widget.cpp")

	globals := GlobalFlags{CacheRoot: t.TempDir()}
	c, err := buildCore(globals, srcDir, jsonlPath, "")
	if err != nil {
		t.Fatalf("buildCore: %v", err)
	}

	if _, err := dispatchQuery(context.Background(), c, "not_a_real_operation", nil, storage.SearchFilters{}, 0, 0); err == nil {
		t.Fatal("expected an error for an unknown query operation")
	}
}

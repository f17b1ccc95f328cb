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

package jsonl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

func writeFixture(t *testing.T, results ...parser.Result) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	for _, r := range results {
		line, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal fixture result: %v", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			t.Fatalf("write fixture line: %v", err)
		}
	}
	return path
}

func TestLoadThenParseFileReturnsMatchingResult(t *testing.T) {
	path := writeFixture(t, parser.Result{
		File:    symbol.FileMetadata{FilePath: "widget.cpp", Success: true, SymbolCount: 1},
		Symbols: []symbol.Symbol{{USR: "u:Widget", Name: "Widget", Kind: symbol.KindClass, File: "widget.cpp"}},
	})

	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	result, err := src.ParseFile(context.Background(), parser.FileInfo{Path: "widget.cpp"})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(result.Symbols) != 1 || result.Symbols[0].Name != "Widget" {
		t.Fatalf("got %+v, want one Widget symbol", result)
	}
}

func TestParseFileUnmappedPathReturnsEmptySuccess(t *testing.T) {
	path := writeFixture(t, parser.Result{File: symbol.FileMetadata{FilePath: "widget.cpp", Success: true}})
	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	result, err := src.ParseFile(context.Background(), parser.FileInfo{Path: "untracked.cpp"})
	if err != nil {
		t.Fatalf("ParseFile on an unmapped path should not error, got %v", err)
	}
	if !result.File.Success || len(result.Symbols) != 0 {
		t.Errorf("got %+v, want an empty successful result for an unmapped file", result)
	}
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := writeFixture(t, parser.Result{File: symbol.FileMetadata{FilePath: "a.cpp", Success: true}})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := os.WriteFile(path, append(data, '\n', '\n'), 0o644); err != nil {
		t.Fatalf("append blank lines: %v", err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load should tolerate blank lines, got %v", err)
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{not valid json\n"), 0o644); err != nil {
		t.Fatalf("write malformed fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a malformed JSONL line")
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Fatal("expected an error for a nonexistent JSONL file")
	}
}

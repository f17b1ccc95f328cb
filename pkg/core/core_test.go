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

package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// fakeSource is a deterministic stand-in for the external C++ parser
// collaborator: one class symbol per file, named after its basename.
type fakeSource struct{}

func (fakeSource) ParseFile(ctx context.Context, f parser.FileInfo) (*parser.Result, error) {
	name := filepath.Base(f.Path)
	return &parser.Result{
		File: symbol.FileMetadata{FilePath: f.Path, Success: true, SymbolCount: 1},
		Symbols: []symbol.Symbol{{
			USR: "u:" + f.Path, Name: name, QualifiedName: "app::" + name,
			Namespace: "app", Kind: symbol.KindClass, File: f.Path, IsProject: true,
		}},
	}, nil
}

func newBoundTestCore(t *testing.T) (*Core, string) {
	t.Helper()
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "widget.cpp"), []byte("// widget"), 0o644); err != nil {
		t.Fatalf("write widget.cpp: %v", err)
	}

	c := New(Config{CacheRoot: t.TempDir()}, fakeSource{})
	if err := c.SetProjectDirectory(context.Background(), srcDir, "", ""); err != nil {
		t.Fatalf("SetProjectDirectory: %v", err)
	}
	return c, srcDir
}

func TestGetServerStatusBeforeBindingReportsUninitialized(t *testing.T) {
	c := New(Config{CacheRoot: t.TempDir()}, fakeSource{})
	status, err := c.GetServerStatus(context.Background())
	if err != nil {
		t.Fatalf("GetServerStatus: %v", err)
	}
	if status.State != "UNINITIALIZED" {
		t.Errorf("got state %q before binding, want UNINITIALIZED", status.State)
	}
}

func TestSetProjectDirectoryThenSearchClasses(t *testing.T) {
	c, _ := newBoundTestCore(t)
	ctx := context.Background()

	status, err := c.GetServerStatus(ctx)
	if err != nil {
		t.Fatalf("GetServerStatus: %v", err)
	}
	if status.SymbolCount != 1 {
		t.Fatalf("got %d symbols, want 1", status.SymbolCount)
	}

	env, err := c.SearchClasses(ctx, "widget.cpp", storage.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchClasses: %v", err)
	}
	syms, ok := env.Data.([]symbol.Symbol)
	if !ok {
		t.Fatalf("expected []symbol.Symbol data, got %T", env.Data)
	}
	if len(syms) != 1 || syms[0].QualifiedName != "app::widget.cpp" {
		t.Fatalf("got %+v, want one app::widget.cpp class", syms)
	}
}

func TestSearchClassesEmptyResultHasFallbackMetadata(t *testing.T) {
	c, _ := newBoundTestCore(t)
	env, err := c.SearchClasses(context.Background(), "NoSuchClass", storage.SearchFilters{})
	if err != nil {
		t.Fatalf("SearchClasses: %v", err)
	}
	if env.Metadata == nil {
		t.Fatal("expected metadata on an empty result, per the silence-means-success envelope contract")
	}
}

func TestRefreshProjectPicksUpNewFile(t *testing.T) {
	c, srcDir := newBoundTestCore(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(srcDir, "gadget.cpp"), []byte("// gadget"), 0o644); err != nil {
		t.Fatalf("write gadget.cpp: %v", err)
	}
	if err := c.RefreshProject(ctx); err != nil {
		t.Fatalf("RefreshProject: %v", err)
	}

	status, err := c.GetServerStatus(ctx)
	if err != nil {
		t.Fatalf("GetServerStatus: %v", err)
	}
	if status.SymbolCount != 2 {
		t.Fatalf("got %d symbols after refresh, want 2", status.SymbolCount)
	}
}

func TestGetIndexingStatusBeforeBindingReturnsErrNoProject(t *testing.T) {
	c := New(Config{CacheRoot: t.TempDir()}, fakeSource{})
	if _, err := c.GetIndexingStatus(context.Background()); err != ErrNoProject {
		t.Fatalf("got err %v, want ErrNoProject", err)
	}
}

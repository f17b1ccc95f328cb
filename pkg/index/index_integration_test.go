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
	"context"
	"os"
	"path/filepath"
	"testing"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
	"github.com/andreymedv/cppindex/pkg/cache"
	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// fakeSource is a deterministic stand-in for the external C++ parser
// collaborator: one symbol per file, named after its basename.
type fakeSource struct{}

func (fakeSource) ParseFile(ctx context.Context, f parser.FileInfo) (*parser.Result, error) {
	name := filepath.Base(f.Path)
	return &parser.Result{
		File:    symbol.FileMetadata{FilePath: f.Path, FileHash: name, Success: true, SymbolCount: 1},
		Symbols: []symbol.Symbol{{USR: "u:" + f.Path, Name: name, QualifiedName: name, Kind: symbol.KindClass, File: f.Path}},
	}, nil
}

func newTestIndexer(t *testing.T, sourceDir string) *Indexer {
	t.Helper()
	orch, err := cache.New(context.Background(), cache.DefaultConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	machine := state.NewMachine()
	progress := state.NewProgressPublisher()
	return New(orch, fakeSource{}, machine, progress, sourceDir, DefaultConfig(), nil)
}

func TestBootstrapColdBuildThenWarmReopen(t *testing.T) {
	srcDir := t.TempDir()
	for _, f := range []string{"a.cpp", "b.cpp"} {
		if err := os.WriteFile(filepath.Join(srcDir, f), []byte("// "+f), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	configPath := filepath.Join(t.TempDir(), "project.yaml")
	if err := os.WriteFile(configPath, []byte("project: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ix := newTestIndexer(t, srcDir)
	ctx := context.Background()
	if err := ix.Bootstrap(ctx, configPath, ""); err != nil {
		t.Fatalf("Bootstrap (cold): %v", err)
	}
	if got := ix.machine.Current(); got != state.Indexed {
		t.Errorf("got state %v after cold build, want Indexed", got)
	}

	var count int64
	if err := ix.orch.Call(ctx, "test.count_symbols", cerrors.KindTransientStorage, func(b storage.Backend) error {
		n, err := b.CountSymbols(ctx)
		count = n
		return err
	}); err != nil {
		t.Fatalf("count symbols: %v", err)
	}
	if count != 2 {
		t.Errorf("got %d symbols after cold build, want 2", count)
	}

	// Re-bootstrapping against identical inputs should take the warm path
	// (no change in config/compile-commands mtimes): rebuild a second
	// Indexer against the SAME orchestrator/cache dir to simulate a
	// process restart that reopens the warm cache.
	ix2 := New(ix.orch, fakeSource{}, state.NewMachine(), state.NewProgressPublisher(), srcDir, DefaultConfig(), nil)
	if err := ix2.Bootstrap(ctx, configPath, ""); err != nil {
		t.Fatalf("Bootstrap (warm): %v", err)
	}
	if got := ix2.machine.Current(); got != state.Indexed {
		t.Errorf("got state %v after warm reopen, want Indexed", got)
	}
}

func TestIncrementalRefreshReparsesChangedFiles(t *testing.T) {
	srcDir := t.TempDir()
	aPath := filepath.Join(srcDir, "a.cpp")
	if err := os.WriteFile(aPath, []byte("// v1"), 0o644); err != nil {
		t.Fatalf("write a.cpp: %v", err)
	}

	ix := newTestIndexer(t, srcDir)
	ctx := context.Background()
	if err := ix.Bootstrap(ctx, "", ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if err := os.WriteFile(aPath, []byte("// v2, changed"), 0o644); err != nil {
		t.Fatalf("rewrite a.cpp: %v", err)
	}
	bPath := filepath.Join(srcDir, "b.cpp")
	if err := os.WriteFile(bPath, []byte("// new file"), 0o644); err != nil {
		t.Fatalf("write b.cpp: %v", err)
	}

	if err := ix.IncrementalRefresh(ctx); err != nil {
		t.Fatalf("IncrementalRefresh: %v", err)
	}
	if got := ix.machine.Current(); got != state.Indexed {
		t.Errorf("got state %v after refresh, want Indexed", got)
	}
}

func TestIncrementalRefreshRemovesDeletedFileSymbols(t *testing.T) {
	srcDir := t.TempDir()
	aPath := filepath.Join(srcDir, "a.cpp")
	bPath := filepath.Join(srcDir, "b.cpp")
	for _, p := range []string{aPath, bPath} {
		if err := os.WriteFile(p, []byte("// "+p), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ix := newTestIndexer(t, srcDir)
	ctx := context.Background()
	if err := ix.Bootstrap(ctx, "", ""); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if err := os.Remove(bPath); err != nil {
		t.Fatalf("remove b.cpp: %v", err)
	}
	if err := ix.IncrementalRefresh(ctx); err != nil {
		t.Fatalf("IncrementalRefresh: %v", err)
	}
}

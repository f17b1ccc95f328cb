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

package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

func newTestDocumentBackend(t *testing.T) *DocumentBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.json")
	b, err := NewDocumentBackend(path, slog.Default())
	if err != nil {
		t.Fatalf("NewDocumentBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestDocumentBackendSaveAndLoadByName(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	sym := symbol.Symbol{USR: "u:Widget", Name: "Widget", QualifiedName: "app::Widget", Kind: symbol.KindClass, File: "widget.cpp"}
	if err := b.SaveSymbol(ctx, sym); err != nil {
		t.Fatalf("SaveSymbol: %v", err)
	}

	got, err := b.LoadSymbolsByName(ctx, "Widget")
	if err != nil {
		t.Fatalf("LoadSymbolsByName: %v", err)
	}
	if len(got) != 1 || got[0].USR != "u:Widget" {
		t.Fatalf("got %+v, want one Widget symbol", got)
	}

	byUSR, err := b.LoadSymbolByUSR(ctx, "u:Widget")
	if err != nil {
		t.Fatalf("LoadSymbolByUSR: %v", err)
	}
	if byUSR == nil || byUSR.QualifiedName != "app::Widget" {
		t.Fatalf("got %+v, want app::Widget", byUSR)
	}
}

func TestDocumentBackendSaveSymbolsBatchAndCount(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	n, err := b.SaveSymbolsBatch(ctx, []symbol.Symbol{
		{USR: "u:A", Name: "A", Kind: symbol.KindClass, File: "a.cpp"},
		{USR: "u:B", Name: "B", Kind: symbol.KindFunction, File: "b.cpp"},
	})
	if err != nil {
		t.Fatalf("SaveSymbolsBatch: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d saved, want 2", n)
	}

	count, err := b.CountSymbols(ctx)
	if err != nil {
		t.Fatalf("CountSymbols: %v", err)
	}
	if count != 2 {
		t.Errorf("got count %d, want 2", count)
	}
}

func TestDocumentBackendDeleteSymbolsByFile(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	if _, err := b.SaveSymbolsBatch(ctx, []symbol.Symbol{
		{USR: "u:A", Name: "A", Kind: symbol.KindClass, File: "a.cpp"},
		{USR: "u:B", Name: "B", Kind: symbol.KindClass, File: "b.cpp"},
	}); err != nil {
		t.Fatalf("SaveSymbolsBatch: %v", err)
	}

	n, err := b.DeleteSymbolsByFile(ctx, "a.cpp")
	if err != nil {
		t.Fatalf("DeleteSymbolsByFile: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d deleted, want 1", n)
	}

	count, err := b.CountSymbols(ctx)
	if err != nil {
		t.Fatalf("CountSymbols: %v", err)
	}
	if count != 1 {
		t.Errorf("got count %d after delete, want 1", count)
	}
}

func TestDocumentBackendFileMetadataRoundTrip(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	fm := symbol.FileMetadata{FilePath: "widget.cpp", FileHash: "abc123", Success: true, SymbolCount: 3}
	if err := b.SaveFileCache(ctx, fm); err != nil {
		t.Fatalf("SaveFileCache: %v", err)
	}

	got, err := b.GetFileMetadata(ctx, "widget.cpp")
	if err != nil {
		t.Fatalf("GetFileMetadata: %v", err)
	}
	if got == nil || got.FileHash != "abc123" {
		t.Fatalf("got %+v, want FileHash abc123", got)
	}

	if err := b.RemoveFileCache(ctx, "widget.cpp"); err != nil {
		t.Fatalf("RemoveFileCache: %v", err)
	}
	gone, err := b.GetFileMetadata(ctx, "widget.cpp")
	if err != nil {
		t.Fatalf("GetFileMetadata after remove: %v", err)
	}
	if gone != nil {
		t.Errorf("got %+v, want nil after RemoveFileCache", gone)
	}
}

func TestDocumentBackendCallSitesByCallerAndCallee(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	sites := []symbol.CallSite{
		{CallerUSR: "u:A", CalleeName: "b", File: "a.cpp", Line: 10},
		{CallerUSR: "u:A", CalleeName: "c", File: "a.cpp", Line: 11},
	}
	if err := b.SaveCallSites(ctx, "a.cpp", sites); err != nil {
		t.Fatalf("SaveCallSites: %v", err)
	}

	byCaller, err := b.GetCallSitesByCaller(ctx, "u:A")
	if err != nil {
		t.Fatalf("GetCallSitesByCaller: %v", err)
	}
	if len(byCaller) != 2 {
		t.Fatalf("got %d call sites, want 2", len(byCaller))
	}

	byCallee, err := b.GetCallSitesByCallee(ctx, "b")
	if err != nil {
		t.Fatalf("GetCallSitesByCallee: %v", err)
	}
	if len(byCallee) != 1 {
		t.Fatalf("got %d call sites for callee b, want 1", len(byCallee))
	}
}

func TestDocumentBackendTypeAliasesByName(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	aliases := []symbol.TypeAlias{
		{AliasName: "WidgetPtr", AliasQualifiedName: "app::WidgetPtr", CanonicalType: "Widget*", File: "widget.h"},
	}
	if err := b.SaveTypeAliases(ctx, "widget.h", aliases); err != nil {
		t.Fatalf("SaveTypeAliases: %v", err)
	}

	got, err := b.GetTypeAliases(ctx, "WidgetPtr")
	if err != nil {
		t.Fatalf("GetTypeAliases: %v", err)
	}
	if len(got) != 1 || got[0].CanonicalType != "Widget*" {
		t.Fatalf("got %+v, want one alias to Widget*", got)
	}
}

func TestDocumentBackendFileDependenciesAndDependents(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	if err := b.SaveFileDependencies(ctx, "widget.cpp", []symbol.FileDependency{
		{SourceFile: "widget.cpp", IncludedFile: "widget.h", IsDirect: true},
	}); err != nil {
		t.Fatalf("SaveFileDependencies: %v", err)
	}

	dependents, err := b.GetDependents(ctx, "widget.h")
	if err != nil {
		t.Fatalf("GetDependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0] != "widget.cpp" {
		t.Fatalf("got %v, want [widget.cpp]", dependents)
	}
}

func TestDocumentBackendCacheMetadataRoundTrip(t *testing.T) {
	b := newTestDocumentBackend(t)
	ctx := context.Background()

	cm := symbol.CacheMetadata{ConfigMTime: 1234, IncludeDependencies: true}
	if err := b.SetCacheMetadata(ctx, cm); err != nil {
		t.Fatalf("SetCacheMetadata: %v", err)
	}

	got, err := b.GetCacheMetadata(ctx)
	if err != nil {
		t.Fatalf("GetCacheMetadata: %v", err)
	}
	if got == nil || got.ConfigMTime != 1234 || !got.IncludeDependencies {
		t.Fatalf("got %+v, want the saved metadata back", got)
	}
}

func TestDocumentBackendCheckIntegrityOnFreshStore(t *testing.T) {
	b := newTestDocumentBackend(t)
	ok, err := b.CheckIntegrity(context.Background(), true)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if !ok {
		t.Error("expected a freshly-created document backend to pass integrity check")
	}
}

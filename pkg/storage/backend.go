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

// Package storage defines the Backend trait shared by the primary
// (SQLite+FTS5) and secondary (JSON document) implementations, plus the
// health/maintenance surface the cache orchestrator and CLI status command
// read from. The two concrete backends in this package (SQLiteBackend,
// DocumentBackend) must accept the same operations and return the same
// shapes, per spec §4.2 — the orchestrator in pkg/cache holds a Backend
// reference and swaps it on fallback.
package storage

import (
	"context"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// SearchFilters narrows a symbol search. Zero value means "no filter".
type SearchFilters struct {
	ProjectOnly bool
	FileName    string // endswith / bare-name / glob, see pkg/query
	// Namespace distinguishes "not set" (nil, no constraint) from "set to
	// the empty string" (non-nil pointer to "", global namespace only),
	// per spec §4.5: a bare Go string can't carry that distinction, so the
	// filter is only applied when this pointer is non-nil.
	Namespace        *string
	ClassName        string
	SignaturePattern string
	Kinds            []symbol.Kind
	MaxResults       int
}

// HealthStatus aggregates the maintenance signals spec §4.1 requires from
// get_health_status: integrity, size, FTS/base row parity, journaling
// mode, table sizes, warnings and errors.
type HealthStatus struct {
	IntegrityOK      bool
	SizeBytes        int64
	SymbolCount      int64
	FTSCount         int64
	FTSCountMatches  bool
	JournalMode      string
	TableSizes       map[string]int64
	Warnings         []string
	Errors           []string
}

// Backend is the trait implemented by both storage engines. Every method
// takes a context so long scans (regex search, maintenance) can be
// cancelled by the cooperative scheduler described in spec §5.
type Backend interface {
	// Symbols.
	SaveSymbol(ctx context.Context, s symbol.Symbol) error
	SaveSymbolsBatch(ctx context.Context, symbols []symbol.Symbol) (int, error)
	LoadSymbolByUSR(ctx context.Context, usr string) (*symbol.Symbol, error)
	LoadSymbolsByName(ctx context.Context, name string) ([]symbol.Symbol, error)
	LoadSymbolsByFile(ctx context.Context, file string) ([]symbol.Symbol, error)
	LoadSymbolsByKind(ctx context.Context, kind symbol.Kind) ([]symbol.Symbol, error)
	DeleteSymbolsByFile(ctx context.Context, file string) (int, error)
	CountSymbols(ctx context.Context) (int64, error)

	// Full text / regex search.
	SearchFTS(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error)
	SearchRegex(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error)
	RebuildFTS(ctx context.Context) error

	// File metadata / cache.
	SaveFileCache(ctx context.Context, fm symbol.FileMetadata) error
	GetFileMetadata(ctx context.Context, filePath string) (*symbol.FileMetadata, error)
	ListFileMetadata(ctx context.Context) ([]symbol.FileMetadata, error)
	RemoveFileCache(ctx context.Context, filePath string) error

	// Call sites.
	SaveCallSites(ctx context.Context, file string, sites []symbol.CallSite) error
	GetCallSitesByCaller(ctx context.Context, callerUSR string) ([]symbol.CallSite, error)
	GetCallSitesByCallee(ctx context.Context, callee string) ([]symbol.CallSite, error)
	ListCallSites(ctx context.Context) ([]symbol.CallSite, error)

	// Type aliases.
	SaveTypeAliases(ctx context.Context, file string, aliases []symbol.TypeAlias) error
	GetTypeAliases(ctx context.Context, name string) ([]symbol.TypeAlias, error)

	// File dependencies (incremental fan-out).
	SaveFileDependencies(ctx context.Context, file string, deps []symbol.FileDependency) error
	GetDependents(ctx context.Context, includedFile string) ([]string, error)

	// Global cache metadata.
	GetCacheMetadata(ctx context.Context) (*symbol.CacheMetadata, error)
	SetCacheMetadata(ctx context.Context, cm symbol.CacheMetadata) error

	// Maintenance.
	Vacuum(ctx context.Context) error
	Analyze(ctx context.Context) error
	Optimize(ctx context.Context) error
	CheckIntegrity(ctx context.Context, full bool) (bool, error)
	GetHealthStatus(ctx context.Context) (*HealthStatus, error)

	// Lifecycle.
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

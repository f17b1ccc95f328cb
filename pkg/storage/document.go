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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// documentState is the whole document-backend store, serialized verbatim
// as the on-disk JSON file.
type documentState struct {
	Symbols       map[string]symbol.Symbol     `json:"symbols"`
	FileMetadata  map[string]symbol.FileMetadata `json:"file_metadata"`
	CallSites     []symbol.CallSite            `json:"call_sites"`
	TypeAliases   []symbol.TypeAlias           `json:"type_aliases"`
	Dependencies  []symbol.FileDependency      `json:"file_dependencies"`
	CacheMetadata *symbol.CacheMetadata        `json:"cache_metadata,omitempty"`
	SchemaVer     int                          `json:"schema_version"`
}

func newDocumentState() *documentState {
	return &documentState{
		Symbols:      make(map[string]symbol.Symbol),
		FileMetadata: make(map[string]symbol.FileMetadata),
	}
}

// DocumentBackend is the secondary/fallback storage backend: a JSON-file
// encoding of the same contract SQLiteBackend exposes, per spec §4.2. Used
// either as a historical format auto-migrated to primary on first run, or
// as a failover destination when the primary errors out. It accepts the
// same operations and returns the same shapes, just with O(n) linear
// scans instead of indexed lookups — acceptable for the document
// backend's explicitly worse-on-large-projects role.
type DocumentBackend struct {
	mu     sync.RWMutex
	path   string
	state  *documentState
	logger *slog.Logger
}

// NewDocumentBackend loads (or creates) the JSON document at path.
func NewDocumentBackend(path string, logger *slog.Logger) (*DocumentBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &DocumentBackend{path: path, logger: logger, state: newDocumentState()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := b.persistLocked(); err != nil {
				return nil, err
			}
			return b, nil
		}
		return nil, fmt.Errorf("read document backend: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, b.state); err != nil {
			return nil, fmt.Errorf("decode document backend: %w", err)
		}
	}
	if b.state.Symbols == nil {
		b.state.Symbols = make(map[string]symbol.Symbol)
	}
	if b.state.FileMetadata == nil {
		b.state.FileMetadata = make(map[string]symbol.FileMetadata)
	}
	return b, nil
}

func (b *DocumentBackend) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

func (b *DocumentBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persistLocked()
}

func (b *DocumentBackend) SaveSymbol(ctx context.Context, s symbol.Symbol) error {
	_, err := b.SaveSymbolsBatch(ctx, []symbol.Symbol{s})
	return err
}

func (b *DocumentBackend) SaveSymbolsBatch(ctx context.Context, symbols []symbol.Symbol) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range symbols {
		b.state.Symbols[s.USR] = s
	}
	return len(symbols), b.persistLocked()
}

func (b *DocumentBackend) LoadSymbolByUSR(ctx context.Context, usr string) (*symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.state.Symbols[usr]; ok {
		return &s, nil
	}
	return nil, nil
}

func (b *DocumentBackend) allSymbolsLocked() []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(b.state.Symbols))
	for _, s := range b.state.Symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].USR < out[j].USR })
	return out
}

func (b *DocumentBackend) LoadSymbolsByName(ctx context.Context, name string) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.Symbol
	for _, s := range b.allSymbolsLocked() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *DocumentBackend) LoadSymbolsByFile(ctx context.Context, file string) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.Symbol
	for _, s := range b.allSymbolsLocked() {
		if s.File == file {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *DocumentBackend) LoadSymbolsByKind(ctx context.Context, kind symbol.Kind) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.Symbol
	for _, s := range b.allSymbolsLocked() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *DocumentBackend) DeleteSymbolsByFile(ctx context.Context, file string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for usr, s := range b.state.Symbols {
		if s.File == file {
			delete(b.state.Symbols, usr)
			n++
		}
	}
	kept := b.state.CallSites[:0]
	for _, c := range b.state.CallSites {
		if c.File != file {
			kept = append(kept, c)
		}
	}
	b.state.CallSites = kept

	keptAliases := b.state.TypeAliases[:0]
	for _, a := range b.state.TypeAliases {
		if a.File != file {
			keptAliases = append(keptAliases, a)
		}
	}
	b.state.TypeAliases = keptAliases

	return n, b.persistLocked()
}

func (b *DocumentBackend) CountSymbols(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.state.Symbols)), nil
}

func matchesFilters(s symbol.Symbol, filters SearchFilters) bool {
	if filters.ProjectOnly && !s.IsProject {
		return false
	}
	if filters.FileName != "" && !strings.HasSuffix(s.File, filters.FileName) {
		return false
	}
	if filters.Namespace != nil {
		ns := *filters.Namespace
		if ns == "" {
			if s.Namespace != "" {
				return false
			}
		} else if s.Namespace != ns && !strings.HasPrefix(s.Namespace, ns+"::") {
			return false
		}
	}
	if filters.ClassName != "" && s.ParentClass != filters.ClassName {
		return false
	}
	if filters.SignaturePattern != "" && !strings.Contains(strings.ToLower(s.Signature), strings.ToLower(filters.SignaturePattern)) {
		return false
	}
	if len(filters.Kinds) > 0 {
		found := false
		for _, k := range filters.Kinds {
			if s.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func applyLimit(out []symbol.Symbol, max int) []symbol.Symbol {
	if max > 0 && len(out) > max {
		return out[:max]
	}
	return out
}

// SearchFTS performs a simple case-insensitive substring match against
// name/qualified_name, the document backend's equivalent of an FTS index.
func (b *DocumentBackend) SearchFTS(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	needle := strings.ToLower(pattern)
	var out []symbol.Symbol
	for _, s := range b.allSymbolsLocked() {
		if !matchesFilters(s, filters) {
			continue
		}
		if strings.Contains(strings.ToLower(s.Name), needle) || strings.Contains(strings.ToLower(s.QualifiedName), needle) {
			out = append(out, s)
		}
	}
	return applyLimit(out, filters.MaxResults), nil
}

func (b *DocumentBackend) SearchRegex(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		b.logger.Warn("storage.document.invalid_regex", "pattern", pattern, "err", err)
		return nil, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.Symbol
	for _, s := range b.allSymbolsLocked() {
		if !matchesFilters(s, filters) {
			continue
		}
		if re.MatchString(s.Name) || re.MatchString(s.QualifiedName) {
			out = append(out, s)
		}
	}
	return applyLimit(out, filters.MaxResults), nil
}

func (b *DocumentBackend) RebuildFTS(ctx context.Context) error {
	// No secondary index to rebuild; substring scan always reflects
	// current state.
	return nil
}

func (b *DocumentBackend) SaveFileCache(ctx context.Context, fm symbol.FileMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.FileMetadata[fm.FilePath] = fm
	return b.persistLocked()
}

func (b *DocumentBackend) GetFileMetadata(ctx context.Context, filePath string) (*symbol.FileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if fm, ok := b.state.FileMetadata[filePath]; ok {
		return &fm, nil
	}
	return nil, nil
}

func (b *DocumentBackend) ListFileMetadata(ctx context.Context) ([]symbol.FileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]symbol.FileMetadata, 0, len(b.state.FileMetadata))
	for _, fm := range b.state.FileMetadata {
		out = append(out, fm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out, nil
}

func (b *DocumentBackend) RemoveFileCache(ctx context.Context, filePath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state.FileMetadata, filePath)
	return b.persistLocked()
}

func (b *DocumentBackend) SaveCallSites(ctx context.Context, file string, sites []symbol.CallSite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.state.CallSites[:0]
	for _, c := range b.state.CallSites {
		if c.File != file {
			kept = append(kept, c)
		}
	}
	b.state.CallSites = append(kept, sites...)
	return b.persistLocked()
}

func (b *DocumentBackend) GetCallSitesByCaller(ctx context.Context, callerUSR string) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.CallSite
	for _, c := range b.state.CallSites {
		if c.CallerUSR == callerUSR {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *DocumentBackend) GetCallSitesByCallee(ctx context.Context, callee string) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.CallSite
	for _, c := range b.state.CallSites {
		if c.CalleeUSR == callee || c.CalleeName == callee {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *DocumentBackend) ListCallSites(ctx context.Context) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]symbol.CallSite, len(b.state.CallSites))
	copy(out, b.state.CallSites)
	return out, nil
}

func (b *DocumentBackend) SaveTypeAliases(ctx context.Context, file string, aliases []symbol.TypeAlias) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.state.TypeAliases[:0]
	for _, a := range b.state.TypeAliases {
		if a.File != file {
			kept = append(kept, a)
		}
	}
	b.state.TypeAliases = append(kept, aliases...)
	return b.persistLocked()
}

func (b *DocumentBackend) GetTypeAliases(ctx context.Context, name string) ([]symbol.TypeAlias, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []symbol.TypeAlias
	for _, a := range b.state.TypeAliases {
		if a.AliasName == name || a.AliasQualifiedName == name || a.CanonicalType == name {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *DocumentBackend) SaveFileDependencies(ctx context.Context, file string, deps []symbol.FileDependency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.state.Dependencies[:0]
	for _, d := range b.state.Dependencies {
		if d.SourceFile != file {
			kept = append(kept, d)
		}
	}
	b.state.Dependencies = append(kept, deps...)
	return b.persistLocked()
}

func (b *DocumentBackend) GetDependents(ctx context.Context, includedFile string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, d := range b.state.Dependencies {
		if d.IncludedFile == includedFile && !seen[d.SourceFile] {
			seen[d.SourceFile] = true
			out = append(out, d.SourceFile)
		}
	}
	return out, nil
}

func (b *DocumentBackend) GetCacheMetadata(ctx context.Context) (*symbol.CacheMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.CacheMetadata, nil
}

func (b *DocumentBackend) SetCacheMetadata(ctx context.Context, cm symbol.CacheMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.CacheMetadata = &cm
	return b.persistLocked()
}

func (b *DocumentBackend) Vacuum(ctx context.Context) error {
	// Rewriting the JSON file from in-memory state is the document
	// backend's equivalent of compaction.
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persistLocked()
}

func (b *DocumentBackend) Analyze(ctx context.Context) error { return nil }
func (b *DocumentBackend) Optimize(ctx context.Context) error { return nil }

func (b *DocumentBackend) CheckIntegrity(ctx context.Context, full bool) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, err := json.Marshal(b.state)
	if err != nil {
		return false, err
	}
	var probe documentState
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, nil
	}
	for _, s := range b.state.Symbols {
		if _, ok := b.state.FileMetadata[s.File]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (b *DocumentBackend) GetHealthStatus(ctx context.Context) (*HealthStatus, error) {
	ok, err := b.CheckIntegrity(ctx, true)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, statErr := os.Stat(b.path)
	var size int64
	if statErr == nil {
		size = info.Size()
	}
	hs := &HealthStatus{
		IntegrityOK: ok,
		SizeBytes:   size,
		SymbolCount: int64(len(b.state.Symbols)),
		FTSCount:    int64(len(b.state.Symbols)), // no separate FTS table
		FTSCountMatches: true,
		JournalMode: "n/a (document backend)",
		TableSizes: map[string]int64{
			"symbols":       int64(len(b.state.Symbols)),
			"file_metadata": int64(len(b.state.FileMetadata)),
			"call_sites":    int64(len(b.state.CallSites)),
			"type_aliases":  int64(len(b.state.TypeAliases)),
		},
	}
	if !ok {
		hs.Errors = append(hs.Errors, "a symbol references a file missing from file_metadata")
	}
	return hs, nil
}

func (b *DocumentBackend) SchemaVersion(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.SchemaVer, nil
}

// SetSchemaVersion records v as the document store's schema version, which
// SchemaVersion reports back. The document backend has no migration
// scripts of its own; pkg/storage/migrate works on the SQLite handle only.
func (b *DocumentBackend) SetSchemaVersion(ctx context.Context, v int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.SchemaVer = v
	return b.persistLocked()
}

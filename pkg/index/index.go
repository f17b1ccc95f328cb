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

// Package index implements the cold/warm/incremental index lifecycle,
// generalizing the teacher's one-shot LocalPipeline.Run (local_pipeline.go)
// and its hash-based change detector (hash_delta.go) into a lifecycle that
// keeps a persistent store current against an external C++ parser,
// instead of running once against a fresh CozoDB.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreymedv/cppindex/pkg/cache"
	cerrors "github.com/andreymedv/cppindex/internal/errors"
	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Config controls one Indexer's file discovery and parse concurrency.
type Config struct {
	IncludePatterns []string
	ExcludePatterns []string
	ParseWorkers    int
	MaxParseRetries int
	// IncludeDependencies mirrors the CacheMetadata flag of the same name:
	// whether file_dependencies are tracked for transitive-consumer expansion.
	IncludeDependencies bool
}

// DefaultConfig mirrors spec §6's defaults for the indexing surface.
func DefaultConfig() Config {
	return Config{ParseWorkers: 4, MaxParseRetries: 3}
}

// Indexer owns the cold/warm/incremental lifecycle for one project against
// one cache orchestrator.
type Indexer struct {
	mu sync.Mutex

	orch      *cache.Orchestrator
	source    parser.SymbolSource
	machine   *state.Machine
	progress  *state.ProgressPublisher
	logger    *slog.Logger
	cfg       Config
	sourceDir string
}

// New constructs an Indexer. orch and source are owned by the caller.
func New(orch *cache.Orchestrator, source parser.SymbolSource, machine *state.Machine, progress *state.ProgressPublisher, sourceDir string, cfg Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ParseWorkers <= 0 {
		cfg.ParseWorkers = 4
	}
	if cfg.MaxParseRetries <= 0 {
		cfg.MaxParseRetries = 3
	}
	return &Indexer{
		orch:      orch,
		source:    source,
		machine:   machine,
		progress:  progress,
		logger:    logger,
		cfg:       cfg,
		sourceDir: sourceDir,
	}
}

// Bootstrap runs the warm path, falling back to a cold build when the
// stored cache metadata doesn't match the current configuration. Spec
// §4.4: "on construct, ask the store to validate cache metadata ... If the
// metadata matches, skip indexing entirely."
func (ix *Indexer) Bootstrap(ctx context.Context, configPath, compileCommandsPath string) error {
	ix.machine.Transition(state.Initializing)

	want, err := buildCacheMetadata(configPath, compileCommandsPath, ix.cfg.IncludeDependencies)
	if err != nil {
		ix.machine.Transition(state.Error)
		return cerrors.Classify(cerrors.KindFatal, err)
	}

	var stored *symbol.CacheMetadata
	callErr := ix.orch.Call(ctx, "bootstrap.get_cache_metadata", cerrors.KindTransientStorage, func(b storage.Backend) error {
		m, err := b.GetCacheMetadata(ctx)
		if err != nil {
			return err
		}
		stored = m
		return nil
	})
	if callErr == nil && stored != nil && stored.Matches(want) {
		ix.logger.Info("index.warm.cache_hit", "source_dir", ix.sourceDir)
		var total int64
		_ = ix.orch.Call(ctx, "bootstrap.count_symbols", cerrors.KindTransientStorage, func(b storage.Backend) error {
			files, err := b.ListFileMetadata(ctx)
			if err != nil {
				return err
			}
			total = int64(len(files))
			return nil
		})
		ix.progress.Reset(total)
		ix.progress.Update(func(p *state.Progress) {
			p.IndexedFiles = total
			p.CacheHits = total
		})
		ix.progress.Complete()
		ix.machine.Transition(state.Indexed)
		return nil
	}

	ix.logger.Info("index.warm.cache_miss", "source_dir", ix.sourceDir)
	return ix.ColdBuild(ctx, configPath, compileCommandsPath, want)
}

// ColdBuild implements spec §4.4's cold path: walk, hash, parse, dedup,
// batch-write, write cache metadata, transition to INDEXED.
func (ix *Indexer) ColdBuild(ctx context.Context, configPath, compileCommandsPath string, want symbol.CacheMetadata) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.machine.Transition(state.Indexing)

	rels, err := walkFiles(ix.sourceDir, ix.cfg.IncludePatterns, ix.cfg.ExcludePatterns)
	if err != nil {
		ix.machine.Transition(state.Error)
		return cerrors.Classify(cerrors.KindFatal, fmt.Errorf("walk project root: %w", err))
	}
	sort.Strings(rels)

	ix.progress.Reset(int64(len(rels)))

	files := make([]parser.FileInfo, len(rels))
	for i, rel := range rels {
		files[i] = parser.FileInfo{Path: rel, FullPath: filepath.Join(ix.sourceDir, rel)}
	}

	results, parseErrors := ix.parseFilesParallel(ctx, files)

	batch := dedupSymbols(results)

	if err := ix.writeResults(ctx, batch, results); err != nil {
		ix.machine.Transition(state.Error)
		return err
	}

	want.IndexedFileCount = len(rels)
	if err := ix.orch.Call(ctx, "cold_build.set_cache_metadata", cerrors.KindTransientStorage, func(b storage.Backend) error {
		return b.SetCacheMetadata(ctx, want)
	}); err != nil {
		ix.machine.Transition(state.Error)
		return err
	}

	ix.progress.Complete()
	ix.logger.Info("index.cold_build.complete",
		"files", len(rels), "parse_errors", parseErrors, "symbols", len(batch))
	ix.machine.Transition(state.Indexed)
	return nil
}

// IncrementalRefresh implements spec §4.4's incremental path.
func (ix *Indexer) IncrementalRefresh(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.machine.Transition(state.Refreshing)

	rels, err := walkFiles(ix.sourceDir, ix.cfg.IncludePatterns, ix.cfg.ExcludePatterns)
	if err != nil {
		ix.machine.Transition(state.Error)
		return cerrors.Classify(cerrors.KindFatal, fmt.Errorf("walk project root: %w", err))
	}
	onDisk := make(map[string]bool, len(rels))
	for _, r := range rels {
		onDisk[r] = true
	}

	var stored []symbol.FileMetadata
	if err := ix.orch.Call(ctx, "refresh.list_file_metadata", cerrors.KindTransientStorage, func(b storage.Backend) error {
		m, err := b.ListFileMetadata(ctx)
		if err != nil {
			return err
		}
		stored = m
		return nil
	}); err != nil {
		ix.machine.Transition(state.Error)
		return err
	}
	storedHash := make(map[string]string, len(stored))
	for _, fm := range stored {
		storedHash[fm.FilePath] = fm.FileHash
	}

	var changed, deleted []string
	for _, rel := range rels {
		fullPath := filepath.Join(ix.sourceDir, rel)
		h, hashErr := hashFile(fullPath)
		if hashErr != nil {
			ix.logger.Warn("index.refresh.hash_failed", "path", rel, "err", hashErr)
			continue
		}
		if prev, ok := storedHash[rel]; !ok || prev != h {
			changed = append(changed, rel)
		}
	}
	for path := range storedHash {
		if !onDisk[path] {
			deleted = append(deleted, path)
		}
	}

	if ix.cfg.IncludeDependencies {
		changed = ix.expandByDependents(ctx, changed)
	}

	for _, path := range deleted {
		if err := ix.orch.Call(ctx, "refresh.delete_file", cerrors.KindTransientStorage, func(b storage.Backend) error {
			if _, err := b.DeleteSymbolsByFile(ctx, path); err != nil {
				return err
			}
			return b.RemoveFileCache(ctx, path)
		}); err != nil {
			ix.logger.Warn("index.refresh.delete_failed", "path", path, "err", err)
		}
	}

	if len(changed) == 0 {
		ix.progress.Reset(int64(len(rels)))
		ix.progress.Update(func(p *state.Progress) { p.IndexedFiles = int64(len(rels)) })
		ix.progress.Complete()
		ix.machine.Transition(state.Indexed)
		return nil
	}

	sort.Strings(changed)
	ix.progress.Reset(int64(len(changed)))

	files := make([]parser.FileInfo, len(changed))
	for i, rel := range changed {
		files[i] = parser.FileInfo{Path: rel, FullPath: filepath.Join(ix.sourceDir, rel)}
	}

	for _, path := range changed {
		if err := ix.orch.Call(ctx, "refresh.clear_file", cerrors.KindTransientStorage, func(b storage.Backend) error {
			_, err := b.DeleteSymbolsByFile(ctx, path)
			return err
		}); err != nil {
			ix.logger.Warn("index.refresh.clear_failed", "path", path, "err", err)
		}
	}

	results, parseErrors := ix.parseFilesParallel(ctx, files)
	batch := dedupSymbols(results)

	if err := ix.writeResults(ctx, batch, results); err != nil {
		ix.machine.Transition(state.Error)
		return err
	}

	ix.progress.Complete()
	ix.logger.Info("index.refresh.complete",
		"changed", len(changed), "deleted", len(deleted), "parse_errors", parseErrors)
	ix.machine.Transition(state.Indexed)
	return nil
}

// expandByDependents grows changed by every file that transitively depends
// on a changed file, per spec §4.4 step 4.
func (ix *Indexer) expandByDependents(ctx context.Context, changed []string) []string {
	seen := make(map[string]bool, len(changed))
	queue := append([]string{}, changed...)
	for _, c := range changed {
		seen[c] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var dependents []string
		if err := ix.orch.Call(ctx, "refresh.get_dependents", cerrors.KindTransientStorage, func(b storage.Backend) error {
			d, err := b.GetDependents(ctx, cur)
			if err != nil {
				return err
			}
			dependents = d
			return nil
		}); err != nil {
			continue
		}
		for _, dep := range dependents {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	return out
}

// writeResults dedups and batch-writes one parse run's output to the
// active backend, publishing progress as it goes.
func (ix *Indexer) writeResults(ctx context.Context, batch []symbol.Symbol, results []*parser.Result) error {
	return ix.orch.Call(ctx, "index.write_batch", cerrors.KindTransientStorage, func(b storage.Backend) error {
		if len(batch) > 0 {
			if _, err := b.SaveSymbolsBatch(ctx, batch); err != nil {
				return err
			}
		}
		for _, r := range results {
			if r == nil {
				continue
			}
			if err := b.SaveFileCache(ctx, r.File); err != nil {
				return err
			}
			if err := b.SaveCallSites(ctx, r.File.FilePath, r.CallSites); err != nil {
				return err
			}
			if err := b.SaveTypeAliases(ctx, r.File.FilePath, r.TypeAliases); err != nil {
				return err
			}
			if err := b.SaveFileDependencies(ctx, r.File.FilePath, r.Dependencies); err != nil {
				return err
			}
		}
		return nil
	})
}

// parseFilesParallel mirrors the teacher's LocalPipeline.parseFilesParallel
// worker-pool shape (local_pipeline.go), generalized to the external
// parser.SymbolSource interface and per-file retry with exponential
// backoff for transient parse failures.
func (ix *Indexer) parseFilesParallel(ctx context.Context, files []parser.FileInfo) ([]*parser.Result, int) {
	if len(files) == 0 {
		return nil, 0
	}
	numWorkers := ix.cfg.ParseWorkers
	if len(files) < 10 || numWorkers <= 1 {
		return ix.parseFilesSequential(ctx, files)
	}

	jobs := make(chan int, len(files))
	type fileResult struct {
		index  int
		result *parser.Result
		err    error
	}
	resultsChan := make(chan fileResult, len(files))

	var progressCount int64
	var errorCount int32
	total := int64(len(files))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r, err := ix.parseWithRetry(ctx, files[i])
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					ix.logger.Warn("index.parse_file.error", "path", files[i].Path, "err", err)
				}
				resultsChan <- fileResult{index: i, result: r, err: err}
				cur := atomic.AddInt64(&progressCount, 1)
				ix.publishParseProgress(cur, total, files[i].Path, err == nil)
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	go func() { wg.Wait(); close(resultsChan) }()

	ordered := make([]*parser.Result, len(files))
	for fr := range resultsChan {
		if fr.err == nil {
			ordered[fr.index] = fr.result
		}
	}
	return ordered, int(errorCount)
}

func (ix *Indexer) parseFilesSequential(ctx context.Context, files []parser.FileInfo) ([]*parser.Result, int) {
	ordered := make([]*parser.Result, len(files))
	errCount := 0
	total := int64(len(files))
	for i, f := range files {
		select {
		case <-ctx.Done():
			return ordered, errCount
		default:
		}
		r, err := ix.parseWithRetry(ctx, f)
		if err != nil {
			errCount++
			ix.logger.Warn("index.parse_file.error", "path", f.Path, "err", err)
		} else {
			ordered[i] = r
		}
		ix.publishParseProgress(int64(i+1), total, f.Path, err == nil)
	}
	return ordered, errCount
}

func (ix *Indexer) parseWithRetry(ctx context.Context, f parser.FileInfo) (*parser.Result, error) {
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt <= ix.cfg.MaxParseRetries; attempt++ {
		r, err := ix.source.ParseFile(ctx, f)
		if err == nil {
			return r, nil
		}
		lastErr = err
		if cerrors.KindOf(err) == cerrors.KindFatal {
			break
		}
		if attempt < ix.cfg.MaxParseRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func (ix *Indexer) publishParseProgress(current, total int64, currentFile string, ok bool) {
	ix.progress.Update(func(p *state.Progress) {
		p.CurrentFile = currentFile
		if ok {
			p.IndexedFiles = current
		} else {
			p.FailedFiles++
		}
	})
}

// dedupSymbols flattens every result's symbols and applies the
// is_richer_definition rule (spec §4.4) within the batch, keyed by USR.
func dedupSymbols(results []*parser.Result) []symbol.Symbol {
	byUSR := make(map[string]symbol.Symbol)
	order := make([]string, 0)
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, s := range r.Symbols {
			existing, ok := byUSR[s.USR]
			if !ok {
				byUSR[s.USR] = s
				order = append(order, s.USR)
				continue
			}
			if symbol.IsRicherDefinition(s, existing) {
				byUSR[s.USR] = s
			}
		}
	}
	out := make([]symbol.Symbol, 0, len(order))
	for _, usr := range order {
		out = append(out, byUSR[usr])
	}
	return out
}

// buildCacheMetadata stamps the config/compile-commands mtimes into a
// CacheMetadata value for warm-path comparison.
func buildCacheMetadata(configPath, compileCommandsPath string, includeDeps bool) (symbol.CacheMetadata, error) {
	cm := symbol.CacheMetadata{
		IncludeDependencies: includeDeps,
		ConfigPath:          configPath,
		CompileCommandsPath: compileCommandsPath,
	}
	if configPath != "" {
		if mt, err := mtimeOf(configPath); err == nil {
			cm.ConfigMTime = mt
		}
	}
	if compileCommandsPath != "" {
		if mt, err := mtimeOf(compileCommandsPath); err == nil {
			cm.CompileCommandsMTime = mt
		}
	}
	return cm, nil
}

func mtimeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

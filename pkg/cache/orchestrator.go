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

// Package cache implements the orchestrator that sits between callers and
// a storage.Backend: backend selection on construction, safe-call error
// classification, error-rate triggered fallback to the secondary backend,
// auto-migration, and recovery. See spec §4.3.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
	"github.com/andreymedv/cppindex/pkg/errtrack"
	"github.com/andreymedv/cppindex/pkg/storage"
)

// Config mirrors the configuration surface of spec §6's table (the
// cache-relevant subset).
type Config struct {
	CacheDir          string
	PreferPrimary     bool // "primary-backend feature flag"
	ErrorRateWindow   time.Duration
	ErrorRateThreshold float64
	VacuumThresholdMB  int64
	VacuumMinWasteMB   int64
}

// DefaultConfig matches the Open-Question decision in SPEC_FULL.md:
// threshold 5%, window 300s.
func DefaultConfig(cacheDir string) Config {
	return Config{
		CacheDir:           cacheDir,
		PreferPrimary:      true,
		ErrorRateWindow:    300 * time.Second,
		ErrorRateThreshold: 0.05,
		VacuumThresholdMB:  256,
		VacuumMinWasteMB:   64,
	}
}

var (
	callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cppindex_cache_calls_total",
		Help: "Backend calls made through the cache orchestrator.",
	}, []string{"operation", "backend"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cppindex_cache_errors_total",
		Help: "Backend errors observed through the cache orchestrator.",
	}, []string{"operation", "kind"})

	backendSwitches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cppindex_cache_backend_switches_total",
		Help: "Number of times the orchestrator has fallen back to the secondary backend.",
	})
)

func init() {
	prometheus.MustRegister(callsTotal, errorsTotal, backendSwitches)
}

// Orchestrator wraps a storage.Backend, swapping from primary to
// secondary on sustained errors or on construction failure. Its prometheus
// collectors are package-level and registered once, in init, so several
// Orchestrators in one process share the same counters.
type Orchestrator struct {
	mu            sync.RWMutex
	backend       storage.Backend
	onSecondary   bool
	cfg           Config
	logger        *slog.Logger
	tracker       *errtrack.Tracker
	recovery      *errtrack.RecoveryManager
	parseErrorLog *ParseErrorLog
	migratedMarker string
}

// New selects a backend per spec §4.3: prefer primary; if primary init
// fails, log and fall back to the secondary. Runs auto-migration if a
// legacy secondary store exists and no migration marker is present.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	o := &Orchestrator{
		cfg:            cfg,
		logger:         logger,
		tracker:        errtrack.New(cfg.ErrorRateWindow),
		recovery:       errtrack.NewRecoveryManager(cfg.CacheDir, logger),
		parseErrorLog:  NewParseErrorLog(filepath.Join(cfg.CacheDir, "parse_errors.jsonl")),
		migratedMarker: filepath.Join(cfg.CacheDir, ".migrated"),
	}

	primaryPath := filepath.Join(cfg.CacheDir, "symbols.db")
	secondaryPath := filepath.Join(cfg.CacheDir, "symbols.json")

	var backend storage.Backend
	var err error
	if cfg.PreferPrimary {
		backend, err = storage.NewSQLiteBackend(ctx, storage.SQLiteConfig{Path: primaryPath, Logger: logger})
		if err != nil {
			logger.Warn("cache.orchestrator.primary_init_failed", "err", err)
			backend, err = storage.NewDocumentBackend(secondaryPath, logger)
			if err != nil {
				return nil, cerrors.NewFatal("neither primary nor secondary backend could be initialized", err)
			}
			o.onSecondary = true
		}
	} else {
		backend, err = storage.NewDocumentBackend(secondaryPath, logger)
		if err != nil {
			return nil, cerrors.NewFatal("secondary backend init failed and primary was not preferred", err)
		}
		o.onSecondary = true
	}
	o.backend = backend

	if !o.onSecondary {
		if err := o.maybeAutoMigrate(ctx, secondaryPath); err != nil {
			logger.Warn("cache.orchestrator.auto_migrate_failed", "err", err)
		}
	}

	return o, nil
}

// maybeAutoMigrate moves symbols from a pre-existing document-backend
// store into the now-active primary, once, guarded by a marker file so
// re-migration never happens (spec §4.3).
func (o *Orchestrator) maybeAutoMigrate(ctx context.Context, secondaryPath string) error {
	if _, err := os.Stat(o.migratedMarker); err == nil {
		return nil // already migrated
	}
	if _, err := os.Stat(secondaryPath); os.IsNotExist(err) {
		return nil // nothing to migrate
	}

	legacy, err := storage.NewDocumentBackend(secondaryPath, o.logger)
	if err != nil {
		return fmt.Errorf("open legacy store for migration: %w", err)
	}
	defer legacy.Close()

	backup, backupErr := o.recovery.Backup(secondaryPath)
	if backupErr != nil {
		o.logger.Warn("cache.orchestrator.migration_backup_failed", "err", backupErr)
	}

	files, err := legacy.ListFileMetadata(ctx)
	if err != nil {
		return fmt.Errorf("list legacy file metadata: %w", err)
	}
	for _, fm := range files {
		symbols, err := legacy.LoadSymbolsByFile(ctx, fm.FilePath)
		if err != nil {
			return fmt.Errorf("load legacy symbols for %s: %w", fm.FilePath, err)
		}
		if _, err := o.backend.SaveSymbolsBatch(ctx, symbols); err != nil {
			return fmt.Errorf("migrate symbols for %s: %w", fm.FilePath, err)
		}
		if err := o.backend.SaveFileCache(ctx, fm); err != nil {
			return fmt.Errorf("migrate file metadata for %s: %w", fm.FilePath, err)
		}
	}

	if err := os.WriteFile(o.migratedMarker, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	o.logger.Info("cache.orchestrator.auto_migrated", "files", len(files), "backup", backup)
	return nil
}

// Backend returns the currently active backend. Callers (pkg/index,
// pkg/query) should re-fetch it after every call that might trigger a
// fallback rather than caching the pointer themselves.
func (o *Orchestrator) Backend() storage.Backend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.backend
}

func (o *Orchestrator) backendName() string {
	if o.onSecondary {
		return "secondary"
	}
	return "primary"
}

// Call wraps one backend operation: every call is counted, every error
// classified and recorded, and a sustained error rate triggers a one-time
// fallback to the secondary backend. operation is a label like
// "save_symbols_batch" used for metrics and the error tracker.
func (o *Orchestrator) Call(ctx context.Context, operation string, kind cerrors.Kind, fn func(storage.Backend) error) error {
	o.mu.RLock()
	backend := o.backend
	name := o.backendName()
	o.mu.RUnlock()

	o.tracker.RecordCall()
	callsTotal.WithLabelValues(operation, name).Inc()

	err := fn(backend)
	if err == nil {
		return nil
	}

	classifiedKind := kind
	errorsTotal.WithLabelValues(operation, classifiedKind.String()).Inc()

	exceeded := o.tracker.RecordError(operation, classifiedKind, o.cfg.ErrorRateThreshold)

	if !classifiedKind.Recoverable() {
		o.attemptRecovery(ctx, operation, classifiedKind, err)
	}

	if exceeded && !o.onSecondary {
		o.fallbackToSecondary(ctx)
	}

	return err
}

func (o *Orchestrator) attemptRecovery(ctx context.Context, operation string, kind cerrors.Kind, cause error) {
	switch kind {
	case cerrors.KindCorruption:
		o.mu.RLock()
		backend := o.backend
		o.mu.RUnlock()
		if checker, ok := backend.(errtrack.IntegrityChecker); ok {
			primaryPath := filepath.Join(o.cfg.CacheDir, "symbols.db")
			_, repaired, err := o.recovery.Repair(ctx, primaryPath, checker)
			if err != nil {
				o.logger.Error("cache.orchestrator.repair_failed", "operation", operation, "err", err)
			} else if !repaired {
				o.logger.Warn("cache.orchestrator.corruption_unrepaired", "operation", operation)
				o.fallbackToSecondary(ctx)
			}
		}
	case cerrors.KindResourceExhaustion:
		o.logger.Warn("cache.orchestrator.resource_exhaustion", "operation", operation, "err", cause)
		if err := o.recovery.ClearCache(); err != nil {
			o.logger.Error("cache.orchestrator.clear_cache_failed", "err", err)
		}
	}
}

func (o *Orchestrator) fallbackToSecondary(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.onSecondary {
		return
	}

	secondaryPath := filepath.Join(o.cfg.CacheDir, "symbols.json")
	secondary, err := storage.NewDocumentBackend(secondaryPath, o.logger)
	if err != nil {
		o.logger.Error("cache.orchestrator.fallback_init_failed", "err", err)
		return
	}

	old := o.backend
	o.backend = secondary
	o.onSecondary = true
	o.tracker.Reset()
	backendSwitches.Inc()
	o.logger.Warn("cache.orchestrator.fallback_triggered", "threshold", o.cfg.ErrorRateThreshold)

	if old != nil {
		_ = old.Close()
	}
}

// OnSecondary reports whether the orchestrator has fallen back.
func (o *Orchestrator) OnSecondary() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.onSecondary
}

// ErrorRate exposes the current sliding-window rate for status reporting.
func (o *Orchestrator) ErrorRate() float64 {
	return o.tracker.ErrorRate()
}

// ParseErrorLog exposes the append-only parse failure log.
func (o *Orchestrator) ParseErrorLog() *ParseErrorLog {
	return o.parseErrorLog
}

// AutoMaintenance runs vacuum/analyze/optimize, skipping vacuum below the
// configured byte/waste threshold (spec §4.1).
func (o *Orchestrator) AutoMaintenance(ctx context.Context, dbSizeMB, estimatedWasteMB int64) error {
	backend := o.Backend()
	if err := backend.Analyze(ctx); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if err := backend.Optimize(ctx); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if dbSizeMB >= o.cfg.VacuumThresholdMB && estimatedWasteMB >= o.cfg.VacuumMinWasteMB {
		if err := backend.Vacuum(ctx); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}

// Close closes the active backend.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.backend == nil {
		return nil
	}
	return o.backend.Close()
}

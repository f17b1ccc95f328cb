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

// Package core wires identity, cache, index, query, and fallback into the
// tool surface spec §6 describes, generalized from cmd/cie/serve.go's
// cieServer (mutex-guarded db handle, one project per process) into a
// plain Go API object — the RPC/transport layer that would sit in front
// of it is out of scope here.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/andreymedv/cppindex/pkg/cache"
	"github.com/andreymedv/cppindex/pkg/identity"
	"github.com/andreymedv/cppindex/pkg/index"
	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Config is the process-wide configuration surface (the subset of spec
// §6's table that is not per-project), plumbed in from the CLI flags /
// environment at startup.
type Config struct {
	CacheRoot string
	Logger    *slog.Logger
}

// Core is the long-lived, single-project server object. One Core serves
// one project identity at a time, per spec.md's "one core instance = one
// project identity" non-goal; switching projects via SetProjectDirectory
// tears down and rebuilds the cache/index/state for the new identity.
type Core struct {
	mu sync.RWMutex

	cfg    Config
	source parser.SymbolSource
	logger *slog.Logger

	identity symbol.ProjectIdentity
	projCfg  *identity.Config

	orch     *cache.Orchestrator
	machine  *state.Machine
	progress *state.ProgressPublisher
	indexer  *index.Indexer
	policy   state.Policy

	log *callLog
}

// New constructs a Core bound to source (the external parser
// collaborator). No project is set until SetProjectDirectory is called.
func New(cfg Config, source parser.SymbolSource) *Core {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Core{
		cfg:    cfg,
		source: source,
		logger: cfg.Logger,
		log:    newCallLog(256),
	}
}

// SetProjectDirectory binds the core to sourceDir, deriving the project
// identity, loading (or seeding) its config, constructing a fresh cache
// orchestrator and indexer, and bootstrapping the index (warm or cold
// path per spec §4.4). It is the one operation allowed to run while the
// machine is UNINITIALIZED or already bound to a different project.
func (c *Core) SetProjectDirectory(ctx context.Context, sourceDir, configPath, compileCommandsPath string) error {
	id, err := identity.Derive(sourceDir, configPath)
	if err != nil {
		return fmt.Errorf("derive project identity: %w", err)
	}

	cacheDir := identity.CachePath(c.cfg.CacheRoot, id)
	projCfgPath := configPath
	if projCfgPath == "" {
		projCfgPath = filepath.Join(sourceDir, ".cppindex", "project.yaml")
	}
	projCfg, err := identity.Load(projCfgPath, sourceDir)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	orchCfg := cache.DefaultConfig(cacheDir)
	orchCfg.PreferPrimary = projCfg.Backend.PreferPrimary
	if projCfg.ErrorRate.WindowSeconds > 0 {
		orchCfg.ErrorRateWindow = time.Duration(projCfg.ErrorRate.WindowSeconds) * time.Second
	}
	if projCfg.ErrorRate.Threshold > 0 {
		orchCfg.ErrorRateThreshold = projCfg.ErrorRate.Threshold
	}
	if projCfg.Maintenance.VacuumThresholdMB > 0 {
		orchCfg.VacuumThresholdMB = projCfg.Maintenance.VacuumThresholdMB
	}
	if projCfg.Maintenance.VacuumMinWasteMB > 0 {
		orchCfg.VacuumMinWasteMB = projCfg.Maintenance.VacuumMinWasteMB
	}

	orch, err := cache.New(ctx, orchCfg, c.logger)
	if err != nil {
		return fmt.Errorf("construct cache orchestrator: %w", err)
	}

	policy, err := state.ParsePolicy(projCfg.Query.BehaviorPolicy)
	if err != nil {
		c.logger.Warn("core.set_project_directory.bad_policy", "err", err)
	}

	machine := state.NewMachine()
	progress := state.NewProgressPublisher()

	idxCfg := index.DefaultConfig()
	idxCfg.IncludePatterns = projCfg.Indexing.IncludePatterns
	idxCfg.ExcludePatterns = projCfg.Indexing.ExcludePatterns
	if projCfg.Indexing.MaxParseRetries > 0 {
		idxCfg.MaxParseRetries = projCfg.Indexing.MaxParseRetries
	}
	idxCfg.IncludeDependencies = projCfg.Project.IncludeDependencies

	indexer := index.New(orch, c.source, machine, progress, sourceDir, idxCfg, c.logger)

	c.mu.Lock()
	if c.orch != nil {
		_ = c.orch.Close()
	}
	c.identity = id
	c.projCfg = projCfg
	c.orch = orch
	c.machine = machine
	c.progress = progress
	c.indexer = indexer
	c.policy = policy
	c.mu.Unlock()

	compilePath := compileCommandsPath
	if compilePath == "" {
		compilePath = projCfg.Project.CompileCommands
	}
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = projCfg.Project.ConfigFilePath
	}

	return indexer.Bootstrap(ctx, cfgPath, compilePath)
}

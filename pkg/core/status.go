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
	"time"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
	"github.com/andreymedv/cppindex/pkg/cache"
	"github.com/andreymedv/cppindex/pkg/index"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// ErrNoProject is returned by any tool call made before
// SetProjectDirectory has succeeded at least once.
var ErrNoProject = cerrors.NewUserError("no project is set; call set_project_directory first")

// ServerStatus is get_server_status's response shape.
type ServerStatus struct {
	State        string        `json:"state"`
	ProjectDir   string        `json:"project_dir,omitempty"`
	OnSecondary  bool          `json:"on_secondary_backend"`
	ErrorRate    float64       `json:"error_rate"`
	SymbolCount  int64         `json:"symbol_count"`
	RecentCalls  []CallRecord  `json:"recent_calls"`
}

// IndexingStatus is get_indexing_status's response shape.
type IndexingStatus struct {
	State    string         `json:"state"`
	Progress state.Progress `json:"progress"`
}

func (c *Core) snapshot() (*boundProject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.orch == nil {
		return nil, ErrNoProject
	}
	return &boundProject{
		identity: c.identity,
		orch:     c.orch,
		machine:  c.machine,
		progress: c.progress,
		indexer:  c.indexer,
		policy:   c.policy,
	}, nil
}

// boundProject is an immutable snapshot of the currently bound project's
// collaborators, taken under lock so a concurrent SetProjectDirectory
// swap can't tear a single tool call's view of the world out from under
// it mid-call.
type boundProject struct {
	identity symbol.ProjectIdentity
	orch     *cache.Orchestrator
	machine  *state.Machine
	progress *state.ProgressPublisher
	indexer  *index.Indexer
	policy   state.Policy
}

// GetServerStatus reports overall health: state, active backend, error
// rate, symbol count, and recent tool-call activity.
func (c *Core) GetServerStatus(ctx context.Context) (*ServerStatus, error) {
	bp, err := c.snapshot()
	if err != nil {
		if err == ErrNoProject {
			return &ServerStatus{State: state.Uninitialized.String(), RecentCalls: c.log.Recent()}, nil
		}
		return nil, err
	}

	backend := bp.orch.Backend()
	count, countErr := backend.CountSymbols(ctx)
	if countErr != nil {
		count = 0
	}

	return &ServerStatus{
		State:       bp.machine.Current().String(),
		ProjectDir:  bp.identity.SourceDirectory,
		OnSecondary: bp.orch.OnSecondary(),
		ErrorRate:   bp.orch.ErrorRate(),
		SymbolCount: count,
		RecentCalls: c.log.Recent(),
	}, nil
}

// GetIndexingStatus reports the current state and progress snapshot.
func (c *Core) GetIndexingStatus(ctx context.Context) (*IndexingStatus, error) {
	bp, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return &IndexingStatus{State: bp.machine.Current().String(), Progress: bp.progress.Snapshot()}, nil
}

// WaitForIndexing blocks until the project reaches INDEXED or the bounded
// timeout elapses (default 60s), per spec §5.
func (c *Core) WaitForIndexing(ctx context.Context, timeout time.Duration) error {
	bp, err := c.snapshot()
	if err != nil {
		return err
	}
	return bp.machine.WaitIndexed(ctx, timeout)
}

// GetHealthStatus surfaces the backend's own maintenance signals (spec
// §4.1): integrity, size, FTS/base row parity, journaling mode.
func (c *Core) GetHealthStatus(ctx context.Context) (*storage.HealthStatus, error) {
	bp, err := c.snapshot()
	if err != nil {
		return nil, err
	}
	return bp.orch.Backend().GetHealthStatus(ctx)
}

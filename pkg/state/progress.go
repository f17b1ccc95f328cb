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

package state

import (
	"sync"
	"time"
)

// Progress is the object published on every indexing update, per spec
// §4.6.
type Progress struct {
	TotalFiles            int64     `json:"total_files"`
	IndexedFiles          int64     `json:"indexed_files"`
	FailedFiles           int64     `json:"failed_files"`
	CacheHits             int64     `json:"cache_hits"`
	CurrentFile           string    `json:"current_file"`
	StartTime             time.Time `json:"start_time"`
	EstimatedCompletion   time.Time `json:"estimated_completion,omitzero"`
	CompletionPercentage  float64   `json:"completion_percentage"`
	IsComplete            bool      `json:"is_complete"`
}

// ProgressCallback mirrors the teacher's ingestion ProgressCallback shape
// (current, total, phase), generalized with a structured Progress value
// instead of positional args so the state machine can publish the full
// object described in spec §4.6. Callback exceptions (panics) must never
// block or crash the indexer — ProgressPublisher recovers from them.
type ProgressCallback func(p Progress)

// ProgressPublisher tracks indexing progress and invokes a callback on
// every update, swallowing callback panics per spec §4.4/§5
// ("progress update callbacks must never block the indexer; exceptions
// in callbacks are swallowed").
type ProgressPublisher struct {
	mu       sync.RWMutex
	progress Progress
	callback ProgressCallback
}

// NewProgressPublisher starts a fresh progress object with start time
// set to now.
func NewProgressPublisher() *ProgressPublisher {
	return &ProgressPublisher{progress: Progress{StartTime: time.Now()}}
}

// SetCallback installs (or replaces) the progress callback.
func (p *ProgressPublisher) SetCallback(cb ProgressCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = cb
}

// Reset begins a fresh run with the given total file count.
func (p *ProgressPublisher) Reset(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = Progress{TotalFiles: total, StartTime: time.Now()}
	p.publishLocked()
}

// Update advances the published state and invokes the callback.
func (p *ProgressPublisher) Update(fn func(*Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.progress)
	if p.progress.TotalFiles > 0 {
		p.progress.CompletionPercentage = 100 * float64(p.progress.IndexedFiles+p.progress.FailedFiles) / float64(p.progress.TotalFiles)
	}
	p.publishLocked()
}

// Complete marks the run finished and publishes a final update.
func (p *ProgressPublisher) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress.IsComplete = true
	p.progress.CompletionPercentage = 100
	p.publishLocked()
}

func (p *ProgressPublisher) publishLocked() {
	if p.callback == nil {
		return
	}
	snapshot := p.progress
	cb := p.callback
	func() {
		defer func() { _ = recover() }()
		cb(snapshot)
	}()
}

// Snapshot returns the current progress object.
func (p *ProgressPublisher) Snapshot() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}

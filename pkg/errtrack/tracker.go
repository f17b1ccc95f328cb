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

// Package errtrack implements the sliding-window error tracker and the
// recovery manager the cache orchestrator (pkg/cache) relies on to decide
// when to fall back to the secondary backend and how to repair a
// corrupted primary store. See spec §4.8.
package errtrack

import (
	"sync"
	"time"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
)

const maxHistory = 1000

// Event is one recorded error, timestamped for sliding-window eviction.
type Event struct {
	At        time.Time
	Operation string
	Kind      cerrors.Kind
}

// Tracker is a sliding-window error counter. Default window is 300s,
// bounded history of 1000 events, per spec §4.8.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	events []Event
	calls  int64 // total calls observed via RecordCall, for rate calc
}

// Config exposes the window and threshold as configuration, never
// hard-coded, per the Open-Question decision recorded in SPEC_FULL.md.
type Config struct {
	Window    time.Duration // default 300s
	Threshold float64       // default 0.05 (5%)
}

// DefaultConfig matches spec §4.3's "default 5% over 300s".
func DefaultConfig() Config {
	return Config{Window: 300 * time.Second, Threshold: 0.05}
}

// New creates a Tracker with the given sliding window.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = 300 * time.Second
	}
	return &Tracker{window: window}
}

// RecordCall registers that one backend call happened, regardless of
// outcome — the denominator for the error rate.
func (t *Tracker) RecordCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
}

// RecordError appends an error event and reports whether the sliding
// window error rate now exceeds threshold. The orchestrator uses the
// return value to decide whether to trigger a backend fallback.
func (t *Tracker) RecordError(operation string, kind cerrors.Kind, threshold float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.events = append(t.events, Event{At: now, Operation: operation, Kind: kind})
	if len(t.events) > maxHistory {
		t.events = t.events[len(t.events)-maxHistory:]
	}
	t.evictLocked(now)

	rate := t.rateLocked(now)
	return rate > threshold
}

func (t *Tracker) evictLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.events) && t.events[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.events = t.events[i:]
	}
}

func (t *Tracker) rateLocked(now time.Time) float64 {
	t.evictLocked(now)
	if t.calls == 0 {
		return 0
	}
	windowCalls := t.calls
	if windowCalls < int64(len(t.events)) {
		windowCalls = int64(len(t.events))
	}
	return float64(len(t.events)) / float64(windowCalls)
}

// ErrorRate returns the current sliding-window error rate.
func (t *Tracker) ErrorRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rateLocked(time.Now())
}

// CountByOperation returns a snapshot of error counts per operation
// within the current window (used by GetHealthStatus / status reporting).
func (t *Tracker) CountByOperation() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(time.Now())
	out := map[string]int{}
	for _, e := range t.events {
		out[e.Operation]++
	}
	return out
}

// CountByKind mirrors CountByOperation, grouped by classification.
func (t *Tracker) CountByKind() map[cerrors.Kind]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(time.Now())
	out := map[cerrors.Kind]int{}
	for _, e := range t.events {
		out[e.Kind]++
	}
	return out
}

// Reset clears all recorded events and call counts, used after a
// successful backend switch so the new backend starts with a clean rate.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	t.calls = 0
}

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

import "testing"

func TestProgressPublisherUpdateComputesPercentage(t *testing.T) {
	p := NewProgressPublisher()
	p.Reset(4)
	p.Update(func(pr *Progress) { pr.IndexedFiles = 1 })
	p.Update(func(pr *Progress) { pr.IndexedFiles = 3 })

	got := p.Snapshot()
	if got.CompletionPercentage != 75 {
		t.Errorf("got %.2f%%, want 75%%", got.CompletionPercentage)
	}
}

func TestProgressPublisherCompleteSetsFullPercentage(t *testing.T) {
	p := NewProgressPublisher()
	p.Reset(10)
	p.Complete()

	got := p.Snapshot()
	if !got.IsComplete || got.CompletionPercentage != 100 {
		t.Errorf("got %+v, want IsComplete=true CompletionPercentage=100", got)
	}
}

func TestProgressPublisherSwallowsCallbackPanic(t *testing.T) {
	p := NewProgressPublisher()
	p.SetCallback(func(Progress) { panic("boom") })

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Update must swallow callback panics, got %v", r)
		}
	}()
	p.Reset(1)
	p.Update(func(pr *Progress) { pr.IndexedFiles = 1 })
}

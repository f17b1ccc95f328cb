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
	"context"
	"testing"
	"time"
)

func TestStateQueryReady(t *testing.T) {
	cases := []struct {
		s    State
		want bool
	}{
		{Uninitialized, false},
		{Initializing, false},
		{Indexing, true},
		{Indexed, true},
		{Refreshing, true},
		{Error, false},
	}
	for _, c := range cases {
		if got := c.s.QueryReady(); got != c.want {
			t.Errorf("%s.QueryReady() = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestMachineTransitionAndWaitIndexed(t *testing.T) {
	m := NewMachine()
	if got := m.Current(); got != Uninitialized {
		t.Fatalf("got initial state %v, want Uninitialized", got)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.WaitIndexed(context.Background(), time.Second)
	}()

	m.Transition(Indexing)
	m.Transition(Indexed)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIndexed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitIndexed did not return after transition to Indexed")
	}
}

func TestMachineWaitIndexedTimesOut(t *testing.T) {
	m := NewMachine()
	err := m.WaitIndexed(context.Background(), 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error when never transitioning to Indexed")
	}
}

func TestMachineWaitIndexedRespectsContextCancellation(t *testing.T) {
	m := NewMachine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.WaitIndexed(ctx, time.Second); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestMachineTransitionToIndexedIsOneShot(t *testing.T) {
	m := NewMachine()
	m.Transition(Indexed)
	if err := m.WaitIndexed(context.Background(), time.Second); err != nil {
		t.Fatalf("first Indexed transition should satisfy WaitIndexed: %v", err)
	}

	// Re-entering Indexed after a refresh cycle must not panic (close of
	// an already-closed channel would), and WaitIndexed must still
	// return immediately since the one-shot event already fired.
	m.Transition(Refreshing)
	m.Transition(Indexed)
	if err := m.WaitIndexed(context.Background(), time.Second); err != nil {
		t.Fatalf("second Indexed transition: %v", err)
	}
}

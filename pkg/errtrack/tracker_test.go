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

package errtrack

import (
	"testing"
	"time"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Window != 300*time.Second || cfg.Threshold != 0.05 {
		t.Errorf("got %+v, want 300s window / 5%% threshold", cfg)
	}
}

func TestRecordErrorBelowThresholdDoesNotTrip(t *testing.T) {
	tr := New(time.Minute)
	for i := 0; i < 99; i++ {
		tr.RecordCall()
	}
	tr.RecordCall()
	tripped := tr.RecordError("search_classes", cerrors.KindTransientStorage, 0.05)
	if tripped {
		t.Error("one error in 100 calls (1%) should not trip a 5% threshold")
	}
}

func TestRecordErrorAboveThresholdTrips(t *testing.T) {
	tr := New(time.Minute)
	for i := 0; i < 5; i++ {
		tr.RecordCall()
	}
	var tripped bool
	for i := 0; i < 3; i++ {
		tripped = tr.RecordError("search_classes", cerrors.KindTransientStorage, 0.05)
	}
	if !tripped {
		t.Error("3 errors in 5 calls (60%) should trip a 5% threshold")
	}
}

func TestRecordErrorEvictsOutsideWindow(t *testing.T) {
	tr := New(20 * time.Millisecond)
	tr.RecordCall()
	tr.RecordError("op", cerrors.KindTransientStorage, 0.99)

	time.Sleep(40 * time.Millisecond)
	if rate := tr.ErrorRate(); rate != 0 {
		t.Errorf("got error rate %.2f after the window elapsed, want 0", rate)
	}
}

func TestCountByOperationAndKind(t *testing.T) {
	tr := New(time.Minute)
	tr.RecordCall()
	tr.RecordCall()
	tr.RecordError("search_classes", cerrors.KindTransientStorage, 1.0)
	tr.RecordError("search_classes", cerrors.KindCorruption, 1.0)

	byOp := tr.CountByOperation()
	if byOp["search_classes"] != 2 {
		t.Errorf("got %d search_classes errors, want 2", byOp["search_classes"])
	}

	byKind := tr.CountByKind()
	if byKind[cerrors.KindTransientStorage] != 1 || byKind[cerrors.KindCorruption] != 1 {
		t.Errorf("got %+v, want one of each kind", byKind)
	}
}

func TestResetClearsState(t *testing.T) {
	tr := New(time.Minute)
	tr.RecordCall()
	tr.RecordError("op", cerrors.KindTransientStorage, 0.0)
	tr.Reset()

	if rate := tr.ErrorRate(); rate != 0 {
		t.Errorf("got error rate %.2f after Reset, want 0", rate)
	}
	if len(tr.CountByOperation()) != 0 {
		t.Error("expected empty operation counts after Reset")
	}
}

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

package identity

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, ".cppindex", "project.yaml"), dir)
	if err != nil {
		t.Fatalf("Load on a missing file should not error, got %v", err)
	}
	want := DefaultConfig(dir)
	if cfg.ErrorRate.Threshold != want.ErrorRate.Threshold || cfg.Query.BehaviorPolicy != want.Query.BehaviorPolicy {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")

	cfg := DefaultConfig(dir)
	cfg.Project.AutoRefresh = true
	cfg.ErrorRate.Threshold = 0.1
	cfg.Query.BehaviorPolicy = "block"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Project.AutoRefresh || loaded.ErrorRate.Threshold != 0.1 || loaded.Query.BehaviorPolicy != "block" {
		t.Errorf("got %+v, want the saved overrides to round-trip", loaded)
	}
}

func TestDefaultConfigMatchesConfiguredDefaults(t *testing.T) {
	cfg := DefaultConfig("/src")
	if cfg.Backend.PreferPrimary != true {
		t.Error("expected PreferPrimary to default true")
	}
	if cfg.Indexing.MaxParseRetries != 3 {
		t.Errorf("got MaxParseRetries %d, want 3", cfg.Indexing.MaxParseRetries)
	}
	if cfg.Maintenance.VacuumThresholdMB != 256 || cfg.Maintenance.VacuumMinWasteMB != 64 {
		t.Errorf("got %+v, want the spec's default vacuum thresholds", cfg.Maintenance)
	}
}

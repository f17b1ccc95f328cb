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
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBackupThenRestoreRoundTrips(t *testing.T) {
	cacheDir := t.TempDir()
	srcPath := filepath.Join(cacheDir, "symbols.db")
	want := []byte("not actually a sqlite file, just test content")
	if err := os.WriteFile(srcPath, want, 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	rm := NewRecoveryManager(cacheDir, nil)
	backupPath, err := rm.Backup(srcPath)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if err := os.WriteFile(srcPath, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("simulate corruption: %v", err)
	}

	if err := rm.Restore(backupPath, srcPath); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want the original content restored", got)
	}
}

type fakeIntegrityChecker struct {
	ok  bool
	err error
}

func (f fakeIntegrityChecker) CheckIntegrity(ctx context.Context, full bool) (bool, error) {
	return f.ok, f.err
}

func TestRepairSkipsBackupWhenIntegrityOK(t *testing.T) {
	cacheDir := t.TempDir()
	rm := NewRecoveryManager(cacheDir, nil)

	backupPath, repaired, err := rm.Repair(context.Background(), filepath.Join(cacheDir, "symbols.db"), fakeIntegrityChecker{ok: true})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if !repaired || backupPath != "" {
		t.Errorf("got repaired=%v backupPath=%q, want repaired=true with no backup taken", repaired, backupPath)
	}
}

func TestRepairBacksUpOnCorruption(t *testing.T) {
	cacheDir := t.TempDir()
	srcPath := filepath.Join(cacheDir, "symbols.db")
	if err := os.WriteFile(srcPath, []byte("corrupt bytes"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	rm := NewRecoveryManager(cacheDir, nil)
	backupPath, repaired, err := rm.Repair(context.Background(), srcPath, fakeIntegrityChecker{ok: false})
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if repaired || backupPath == "" {
		t.Errorf("got repaired=%v backupPath=%q, want repaired=false with a backup taken", repaired, backupPath)
	}
	if _, err := os.Stat(backupPath); err != nil {
		t.Errorf("expected backup file to exist at %q: %v", backupPath, err)
	}
}

func TestClearCacheRemovesAndRecreatesDir(t *testing.T) {
	cacheDir := t.TempDir()
	marker := filepath.Join(cacheDir, "symbols.db")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	rm := NewRecoveryManager(cacheDir, nil)
	if err := rm.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}

	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("expected the marker file to be gone after ClearCache")
	}
	if info, err := os.Stat(cacheDir); err != nil || !info.IsDir() {
		t.Error("expected the cache dir itself to be recreated after ClearCache")
	}
}

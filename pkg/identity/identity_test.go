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

func TestDeriveIsStableForSameInputs(t *testing.T) {
	dir := t.TempDir()
	a, err := Derive(dir, "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive(dir, "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if a.Hash != b.Hash {
		t.Errorf("got differing hashes %q and %q for identical inputs", a.Hash, b.Hash)
	}
	if len(a.Hash) != 16 {
		t.Errorf("got hash length %d, want 16", len(a.Hash))
	}
}

func TestDeriveDiffersByConfigPath(t *testing.T) {
	dir := t.TempDir()
	a, err := Derive(dir, "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive(dir, filepath.Join(dir, "project.yaml"))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if a.Hash == b.Hash {
		t.Error("expected different hashes for different config paths on the same source dir")
	}
}

func TestDeriveNormalizesRelativeAndAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}

	a, err := Derive(dir, "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive(abs, "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if a.Hash != b.Hash {
		t.Error("relative and absolute forms of the same directory should collide, not diverge")
	}
}

func TestCacheDirNameIncludesBasenameAndHash(t *testing.T) {
	id, err := Derive("/home/dev/widgetlib", "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	got := CacheDirName(id)
	want := "widgetlib_" + id.Hash
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCachePathJoinsRootAndDirName(t *testing.T) {
	id, err := Derive("/home/dev/widgetlib", "")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	got := CachePath("/var/cache/cppindex", id)
	want := filepath.Join("/var/cache/cppindex", CacheDirName(id))
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

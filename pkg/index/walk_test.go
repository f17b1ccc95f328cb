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

package index

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"main.cpp",
		"widget.h",
		"widget.cpp",
		"third_party/vendor.h",
		".git/HEAD",
		"node_modules/pkg/index.js",
	}
	for _, f := range files {
		full := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("content of "+f), 0o644); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	return root
}

func TestWalkFilesSkipsVCSAndDependencyDirs(t *testing.T) {
	root := writeTestTree(t)
	got, err := walkFiles(root, nil, nil)
	if err != nil {
		t.Fatalf("walkFiles: %v", err)
	}
	sort.Strings(got)
	want := []string{"main.cpp", "third_party/vendor.h", "widget.cpp", "widget.h"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestWalkFilesIncludeExcludePatterns(t *testing.T) {
	root := writeTestTree(t)
	got, err := walkFiles(root, []string{"*.cpp"}, []string{"widget.cpp"})
	if err != nil {
		t.Fatalf("walkFiles: %v", err)
	}
	sort.Strings(got)
	if len(got) != 1 || got[0] != "main.cpp" {
		t.Fatalf("got %v, want only main.cpp", got)
	}
}

func TestHashFileDetectsChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.cpp")
	if err := os.WriteFile(path, []byte("version 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h1, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	if err := os.WriteFile(path, []byte("version 2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h2, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for different file contents")
	}
}

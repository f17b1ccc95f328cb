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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// walkFiles walks sourceDir honoring include/exclude glob patterns. A file
// is included when it matches at least one include pattern (or there are
// none) and no exclude pattern. Symlinks and directories are skipped.
// Relative, slash-normalized paths are returned.
func walkFiles(sourceDir string, include, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !matchesAny(rel, include) {
			return nil
		}
		if matchesAny(rel, exclude) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", ".svn", ".hg", "node_modules", ".cppindex":
		return true
	default:
		return false
	}
}

// matchesAny reports whether path matches any of patterns. An empty
// pattern list matches everything (used for "no include filter
// configured"). Patterns support filepath.Match globs plus a "**/" prefix
// meaning "at any depth", mirroring the exclude-glob convention the
// teacher's delta filtering uses.
func matchesAny(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matchesGlob(path, p) {
			return true
		}
	}
	return false
}

func matchesGlob(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[len("**/"):]
		if ok, _ := filepath.Match(suffix, filepath.Base(path)); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		return strings.Contains(path, "/"+suffix) || strings.HasPrefix(path, suffix)
	}
	if ok, _ := filepath.Match(pattern, path); ok {
		return true
	}
	// Also try matching just the base name, so "*.h" excludes nested headers.
	ok, _ := filepath.Match(pattern, filepath.Base(path))
	return ok
}

func hashFile(fullPath string) (string, error) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}

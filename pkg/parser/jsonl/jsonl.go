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

// Package jsonl implements parser.SymbolSource by reading one pre-parsed
// parser.Result per line from a JSON-lines file keyed by project-relative
// path. This is how an out-of-process libclang-based parser (or a
// recorded fixture) plugs into the index lifecycle without the core
// linking against it directly.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Source reads pre-parsed results from a JSONL file, one parser.Result per
// line, and serves parser.SymbolSource.ParseFile by project-relative path.
type Source struct {
	mu      sync.RWMutex
	results map[string]*parser.Result
}

// Load reads every line of path as a JSON-encoded parser.Result and
// indexes it by Result.File.FilePath.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jsonl source: %w", err)
	}
	defer f.Close()

	s := &Source{results: make(map[string]*parser.Result)}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var result parser.Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("jsonl source: line %d: %w", line, err)
		}
		s.results[result.File.FilePath] = &result
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl source: %w", err)
	}
	return s, nil
}

// ParseFile implements parser.SymbolSource. Files absent from the loaded
// dump return an empty, successful result rather than an error — the
// dump is allowed to cover a subset of the tree (matching the teacher's
// "unsupported language returns empty without error" convention).
func (s *Source) ParseFile(ctx context.Context, file parser.FileInfo) (*parser.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.results[file.Path]; ok {
		return r, nil
	}
	return &parser.Result{
		File: symbol.FileMetadata{FilePath: file.Path, Success: true},
	}, nil
}

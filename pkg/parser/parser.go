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

// Package parser defines the external collaborator the index lifecycle
// consumes: a stream of parsed C++ symbols keyed by file. The core never
// parses C++ itself — a real deployment plugs in a libclang-backed
// implementation of SymbolSource; this package only specifies the trait
// and ships two reference implementations (pkg/parser/treesitter for a
// usable built-in, pkg/parser/jsonl for pre-parsed dumps).
package parser

import (
	"context"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// FileInfo describes one file queued for parsing.
type FileInfo struct {
	Path        string   // project-relative path
	FullPath    string   // absolute path on disk
	Size        int64
	CompileArgs []string // sorted compiler flags, for CompileArgsHash
}

// Result is everything one file's parse contributes to the index.
type Result struct {
	File            symbol.FileMetadata
	Symbols         []symbol.Symbol
	CallSites       []symbol.CallSite
	TypeAliases     []symbol.TypeAlias
	Dependencies    []symbol.FileDependency
}

// SymbolSource is the trait/interface spec.md §1 and §9 describe as the
// "external parser collaborator" — the one extension point the core does
// not implement itself. It does not parse C++ directly; it is implemented
// by whatever trait adapter actually wraps libclang (or, for this
// repository, by a tree-sitter-cpp best-effort reference implementation).
type SymbolSource interface {
	// ParseFile parses one file and returns its contribution to the index.
	// Implementations must be safe to call concurrently from multiple
	// goroutines against different files (the index lifecycle runs a
	// worker pool); a single FileInfo is never parsed concurrently twice.
	ParseFile(ctx context.Context, file FileInfo) (*Result, error)
}

// Closer is implemented by sources that hold resources (pooled parsers,
// open file handles) worth releasing explicitly. Not all sources need it.
type Closer interface {
	Close() error
}

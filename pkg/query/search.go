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

package query

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Search resolves pattern against the backend under the mode its shape
// classifies into, then applies filters. Candidates are fetched with a
// coarse backend-level pass (indexed by simple name, or a direct regex
// fullmatch for ModeRegex) and narrowed with an exact, mode-specific
// predicate in Go — the same coarse-filter/precise-filter split the
// teacher's FindBySignature uses for Go-specific signature parsing.
func Search(ctx context.Context, backend storage.Backend, pattern string, filters storage.SearchFilters) ([]symbol.Symbol, error) {
	out, _, err := SearchWithTotal(ctx, backend, pattern, filters)
	return out, err
}

// SearchWithTotal is Search plus the pre-truncation match count, so a
// caller building a result envelope can tell a truncated result apart
// from a complete one.
func SearchWithTotal(ctx context.Context, backend storage.Backend, pattern string, filters storage.SearchFilters) ([]symbol.Symbol, int, error) {
	mode := Classify(pattern)

	var candidates []symbol.Symbol
	var err error

	switch mode {
	case ModeUnqualified:
		candidates, err = backend.LoadSymbolsByName(ctx, pattern)
		if err != nil {
			return nil, 0, err
		}
		candidates = filterCaseInsensitiveName(candidates, pattern)
	case ModeQualifiedSuffix:
		parts := strings.Split(pattern, "::")
		last := parts[len(parts)-1]
		candidates, err = backend.LoadSymbolsByName(ctx, last)
		if err != nil {
			return nil, 0, err
		}
		candidates = filterQualifiedSuffix(candidates, pattern)
	case ModeExactGlobal:
		target := strings.TrimPrefix(pattern, "::")
		parts := strings.Split(target, "::")
		last := parts[len(parts)-1]
		candidates, err = backend.LoadSymbolsByName(ctx, last)
		if err != nil {
			return nil, 0, err
		}
		candidates = filterExactQualified(candidates, target)
	case ModeRegex:
		candidates, err = backend.SearchRegex(ctx, pattern, storage.SearchFilters{})
		if err != nil {
			return nil, 0, err
		}
	}

	out := applyFilters(candidates, filters)
	sort.Slice(out, func(i, j int) bool {
		if out[i].QualifiedName != out[j].QualifiedName {
			return out[i].QualifiedName < out[j].QualifiedName
		}
		return out[i].USR < out[j].USR
	})

	total := len(out)
	if filters.MaxResults > 0 && len(out) > filters.MaxResults {
		out = out[:filters.MaxResults]
	}
	return out, total, nil
}

func filterCaseInsensitiveName(in []symbol.Symbol, pattern string) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(in))
	for _, s := range in {
		if strings.EqualFold(s.Name, pattern) {
			out = append(out, s)
		}
	}
	return out
}

func filterQualifiedSuffix(in []symbol.Symbol, pattern string) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(in))
	for _, s := range in {
		if matchesQualifiedSuffix(s.QualifiedName, pattern) {
			out = append(out, s)
		}
	}
	return out
}

func filterExactQualified(in []symbol.Symbol, target string) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(in))
	for _, s := range in {
		if s.QualifiedName == target {
			out = append(out, s)
		}
	}
	return out
}

// applyFilters applies spec §4.5's filter set on top of whatever candidate
// set the pattern match produced. Backends apply an equivalent filter set
// at the storage layer for their own direct calls (SearchFTS/SearchRegex);
// this is reapplied here because ModeUnqualified/ModeQualifiedSuffix/
// ModeExactGlobal bypass that path in favor of LoadSymbolsByName.
func applyFilters(in []symbol.Symbol, f storage.SearchFilters) []symbol.Symbol {
	out := make([]symbol.Symbol, 0, len(in))
	for _, s := range in {
		if f.ProjectOnly && !s.IsProject {
			continue
		}
		if f.FileName != "" && !fileNameMatches(s.File, f.FileName) {
			continue
		}
		if f.Namespace != nil && !namespaceMatches(s.Namespace, *f.Namespace) {
			continue
		}
		if f.ClassName != "" && s.ParentClass != f.ClassName {
			continue
		}
		if f.SignaturePattern != "" && !strings.Contains(strings.ToLower(s.Signature), strings.ToLower(f.SignaturePattern)) {
			continue
		}
		if len(f.Kinds) > 0 && !kindIn(s.Kind, f.Kinds) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func fileNameMatches(file, pattern string) bool {
	file = filepath.ToSlash(file)
	pattern = filepath.ToSlash(pattern)
	if strings.HasSuffix(file, pattern) {
		return true
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(file)); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, file)
	return ok
}

// namespaceMatches implements spec §4.5's "partial match at :: boundary,
// or empty string for global namespace": the caller only invokes this
// when f.Namespace is non-nil, so pattern == "" here means "explicitly
// restrict to the global namespace" and matches only symbols with an
// empty Namespace, not "no constraint" (that's the nil-pointer case,
// handled before this function is ever called).
func namespaceMatches(namespace, pattern string) bool {
	if pattern == "" {
		return namespace == ""
	}
	nsParts := strings.Split(namespace, "::")
	patParts := strings.Split(pattern, "::")
	if len(patParts) > len(nsParts) {
		return false
	}
	for i, p := range patParts {
		if nsParts[i] != p {
			return false
		}
	}
	return true
}

func kindIn(k symbol.Kind, kinds []symbol.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// AmbiguityResult is get_class_info's shape when a simple name resolves
// to entries in more than one namespace, per spec §4.5.
type AmbiguityResult struct {
	IsAmbiguous bool             `json:"is_ambiguous"`
	Matches     []AmbiguousEntry `json:"matches"`
	Suggestion  string           `json:"suggestion,omitempty"`
}

// AmbiguousEntry is one candidate in an AmbiguityResult.
type AmbiguousEntry struct {
	Name          string      `json:"name"`
	QualifiedName string      `json:"qualified_name"`
	Namespace     string      `json:"namespace"`
	Kind          symbol.Kind `json:"kind"`
	File          string      `json:"file"`
	Line          int         `json:"line"`
}

// ClassInfo resolves a class/struct lookup by simple or qualified name,
// reporting ambiguity across namespaces per spec §4.5.
func ClassInfo(ctx context.Context, backend storage.Backend, name string) (*symbol.Symbol, *AmbiguityResult, error) {
	matches, err := Search(ctx, backend, name, storage.SearchFilters{Kinds: ClassKinds})
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, nil
	}

	distinctNamespaces := make(map[string]bool)
	for _, m := range matches {
		distinctNamespaces[m.Namespace] = true
	}
	if len(distinctNamespaces) <= 1 {
		best := matches[0]
		return &best, nil, nil
	}

	entries := make([]AmbiguousEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, AmbiguousEntry{
			Name: m.Name, QualifiedName: m.QualifiedName, Namespace: m.Namespace,
			Kind: m.Kind, File: m.File, Line: m.Line,
		})
	}
	return nil, &AmbiguityResult{
		IsAmbiguous: true,
		Matches:     entries,
		Suggestion:  "Use qualified name",
	}, nil
}

// ClassKinds is the symbol.Kind subset search_classes and
// get_class_hierarchy treat as "class-shaped".
var ClassKinds = []symbol.Kind{
	symbol.KindClass, symbol.KindStruct, symbol.KindUnion,
	symbol.KindClassTemplate, symbol.KindPartialSpecialization,
}

// FunctionKinds is the symbol.Kind subset search_functions and
// get_function_signature treat as "function-shaped".
var FunctionKinds = []symbol.Kind{
	symbol.KindFunction, symbol.KindMethod, symbol.KindConstructor,
	symbol.KindDestructor, symbol.KindFunctionTemplate,
}

// FindInFile returns every symbol whose file matches filePattern
// (endswith, bare name, relative path, absolute path, or glob), per spec
// §4.5's find_in_file. Matching is done against the file metadata index
// first so files with zero symbols still participate in the glob match,
// then each matching file's symbols are loaded directly rather than
// scanning the whole symbol table.
func FindInFile(ctx context.Context, backend storage.Backend, filePattern string) ([]symbol.Symbol, error) {
	files, err := backend.ListFileMetadata(ctx)
	if err != nil {
		return nil, err
	}

	var out []symbol.Symbol
	for _, fm := range files {
		if !fileNameMatches(fm.FilePath, filePattern) {
			continue
		}
		syms, err := backend.LoadSymbolsByFile(ctx, fm.FilePath)
		if err != nil {
			return nil, err
		}
		out = append(out, syms...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// ValidateRegex reports whether pattern compiles as Go regexp — used to
// short-circuit ModeRegex searches before they reach the backend, so a
// ReDoS-shaped pattern or invalid syntax surfaces as an empty-result
// envelope rather than a panic or a stalled query (spec testable property:
// "search_classes((a+)+b) ... the process does not stall").
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile(pattern)
	return err
}

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

// Package fallback implements the smart fallback cascade that runs when a
// query returns no results, generalizing the "did you mean a type? Try
// cie_find_type" hinting of the teacher's pkg/tools/search.go FindFunction
// into a priority cascade of corrective strategies.
package fallback

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Result is the fallback payload attached to an empty-result envelope's
// metadata.fallback field.
type Result struct {
	Reason           string   `json:"reason"`
	SearchedFor      string   `json:"searched_for"`
	Hint             string   `json:"hint"`
	SuggestedPattern string   `json:"suggested_pattern,omitempty"`
	Alternatives     []string `json:"alternatives,omitempty"`
}

const maxAlternatives = 10

var typeKeywords = map[string]bool{
	"class": true, "struct": true, "const": true, "static": true,
	"virtual": true, "inline": true, "typename": true, "template": true,
	"void": true, "int": true, "bool": true, "auto": true, "unsigned": true,
}

// Analyze runs the cascade against pattern (and, for the file-case-mismatch
// strategy, fileName) once a search has returned zero rows. It returns nil
// when no strategy in the cascade fires — callers should omit the
// fallback field from the envelope in that case.
func Analyze(ctx context.Context, backend storage.Backend, pattern, fileName string) *Result {
	if r := signatureDetected(ctx, backend, pattern); r != nil {
		return r
	}
	if r := regexHint(ctx, backend, pattern); r != nil {
		return r
	}
	if r := qualifiedFallback(ctx, backend, pattern); r != nil {
		return r
	}
	if r := fileCaseMismatch(ctx, backend, fileName); r != nil {
		return r
	}
	return nil
}

// signatureDetected fires when pattern looks like a signature fragment
// rather than a bare identifier — it contains '(' or a "<type-keyword>
// <identifier> <whitespace>" shape — and extracts the most likely
// identifier to retry with.
func signatureDetected(ctx context.Context, backend storage.Backend, pattern string) *Result {
	if !looksLikeSignature(pattern) {
		return nil
	}
	ident := extractLikelyIdentifier(pattern)
	if ident == "" {
		return nil
	}
	alts := lookupAlternatives(ctx, backend, ident)
	return &Result{
		Reason:           "signature_detected",
		SearchedFor:      pattern,
		Hint:             "the pattern looks like a full signature; searches match identifiers, not signatures",
		SuggestedPattern: ident,
		Alternatives:     alts,
	}
}

func looksLikeSignature(pattern string) bool {
	if strings.Contains(pattern, "(") {
		return true
	}
	fields := strings.Fields(pattern)
	for i := 0; i+1 < len(fields); i++ {
		if typeKeywords[fields[i]] && isIdentifier(fields[i+1]) {
			return true
		}
	}
	return false
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// extractLikelyIdentifier returns the last identifier appearing before an
// opening paren, or else the longest non-keyword identifier token in
// pattern.
func extractLikelyIdentifier(pattern string) string {
	if idx := strings.IndexByte(pattern, '('); idx >= 0 {
		before := pattern[:idx]
		tokens := tokenizeIdentifiers(before)
		if len(tokens) > 0 {
			return tokens[len(tokens)-1]
		}
	}

	best := ""
	for _, tok := range tokenizeIdentifiers(pattern) {
		if typeKeywords[tok] {
			continue
		}
		if len(tok) > len(best) {
			best = tok
		}
	}
	return best
}

var identifierTokenRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func tokenizeIdentifiers(s string) []string {
	return identifierTokenRe.FindAllString(s, -1)
}

// regexHint fires when pattern is syntactically troublesome for the
// fullmatch semantics queries use against it: double-escaped sequences,
// anchors that are redundant under fullmatch, or a short pattern that
// would benefit from ".*" broadening. It strips the trouble, retries, and
// only reports alternatives if the broadened pattern actually matches.
func regexHint(ctx context.Context, backend storage.Backend, pattern string) *Result {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil
	}

	broadened := pattern
	reason := ""

	switch {
	case strings.Contains(pattern, `\\`):
		broadened = strings.ReplaceAll(pattern, `\\`, `\`)
		reason = "double_escaped_pattern"
	case strings.HasPrefix(pattern, "^") || strings.HasSuffix(pattern, "$"):
		broadened = strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
		reason = "dangling_anchor"
	case len(pattern) > 0 && len(pattern) <= 4 && !strings.ContainsAny(pattern, ".*+?[]{}()|"):
		broadened = ".*" + regexp.QuoteMeta(pattern) + ".*"
		reason = "short_pattern_needs_broadening"
	default:
		return nil
	}

	if broadened == pattern {
		return nil
	}

	alts := lookupAlternativesRegex(ctx, backend, broadened)
	if len(alts) == 0 {
		return nil
	}

	return &Result{
		Reason:           reason,
		SearchedFor:      pattern,
		Hint:             "the pattern is matched as a full anchor; try a broader expression",
		SuggestedPattern: broadened,
		Alternatives:     alts,
	}
}

// qualifiedFallback fires when pattern contains "::" but no regex
// metacharacters — strip the qualification, retry on the bare name, and
// return alternatives carrying their full qualified names.
func qualifiedFallback(ctx context.Context, backend storage.Backend, pattern string) *Result {
	if !strings.Contains(pattern, "::") {
		return nil
	}
	if strings.ContainsAny(pattern, ".*+?[]{}()|^$") {
		return nil
	}
	parts := strings.Split(pattern, "::")
	simple := parts[len(parts)-1]
	if simple == "" {
		return nil
	}

	alts := lookupAlternatives(ctx, backend, simple)
	if len(alts) == 0 {
		return nil
	}

	return &Result{
		Reason:           "qualified_fallback",
		SearchedFor:      pattern,
		Hint:             "no symbol matched the fully qualified name; these share the unqualified name",
		SuggestedPattern: simple,
		Alternatives:     alts,
	}
}

// fileCaseMismatch fires when fileName doesn't match any indexed file by
// exact name but does match case-insensitively. Matching is against the
// stored file's base name (like fileNameMatches), since fileName is
// typically a bare name like "Foo.h" while the index stores full paths.
func fileCaseMismatch(ctx context.Context, backend storage.Backend, fileName string) *Result {
	if fileName == "" {
		return nil
	}
	files, err := backend.ListFileMetadata(ctx)
	if err != nil {
		return nil
	}
	lower := strings.ToLower(fileName)
	for _, fm := range files {
		if fm.FilePath == fileName || filepath.Base(fm.FilePath) == fileName {
			return nil // exact match exists; not a case-mismatch situation
		}
	}
	for _, fm := range files {
		if strings.ToLower(fm.FilePath) == lower || strings.ToLower(filepath.Base(fm.FilePath)) == lower {
			return &Result{
				Reason:           "file_case_mismatch",
				SearchedFor:      fileName,
				Hint:             "an indexed file matches case-insensitively",
				SuggestedPattern: fm.FilePath,
				Alternatives:     []string{fm.FilePath},
			}
		}
	}
	return nil
}

func lookupAlternatives(ctx context.Context, backend storage.Backend, name string) []string {
	syms, err := backend.LoadSymbolsByName(ctx, name)
	if err != nil {
		return nil
	}
	return topNames(syms)
}

func lookupAlternativesRegex(ctx context.Context, backend storage.Backend, pattern string) []string {
	syms, err := backend.SearchRegex(ctx, pattern, storage.SearchFilters{MaxResults: maxAlternatives})
	if err != nil {
		return nil
	}
	return topNames(syms)
}

func topNames(syms []symbol.Symbol) []string {
	names := make([]string, 0, len(syms))
	seen := make(map[string]bool, len(syms))
	for _, s := range syms {
		n := s.QualifiedName
		if n == "" {
			n = s.Name
		}
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) > maxAlternatives {
		names = names[:maxAlternatives]
	}
	return names
}

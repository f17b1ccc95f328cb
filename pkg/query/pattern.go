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

// Package query implements the pattern-matching search engine, inheritance
// hierarchy BFS, call-graph traversal, and type-alias resolution, grounded
// on the teacher's pkg/tools/search.go (CozoScript condition building) and
// pkg/tools/trace.go (BFS over the calls relation), generalized from
// CozoScript query strings to direct storage.Backend calls plus in-process
// filtering since the backend here is a trait, not a fixed query language.
package query

import "strings"

// Mode is one of spec §4.5's four pattern-matching modes.
type Mode int

const (
	ModeUnqualified  Mode = iota // no "::" , no regex metachars
	ModeQualifiedSuffix          // contains "::" , no leading "::" , no regex metachars
	ModeExactGlobal              // leading "::"
	ModeRegex                    // contains a regex metacharacter
)

const regexMetaChars = `.*+?[]{}()|\^$`

// Classify determines which of the four pattern modes applies to pattern.
// Regex detection takes priority: any of the listed metacharacters routes
// to ModeRegex, matching spec §4.5 mode 4's detection rule. "::" in a
// regex pattern (e.g. "ns::Foo.*") is still ModeRegex — a pattern is
// classified once, not by a priority cascade among the non-regex modes.
func Classify(pattern string) Mode {
	if containsRegexMeta(pattern) {
		return ModeRegex
	}
	if strings.HasPrefix(pattern, "::") {
		return ModeExactGlobal
	}
	if strings.Contains(pattern, "::") {
		return ModeQualifiedSuffix
	}
	return ModeUnqualified
}

func containsRegexMeta(pattern string) bool {
	return strings.ContainsAny(pattern, regexMetaChars)
}

// matchesQualifiedSuffix reports whether candidate's qualified-name
// component list ends with pattern's component list, per spec §4.5 mode 2:
// "ui::Handler matches app::ui::Handler and legacy::ui::Handler but not
// myui::Handler."
func matchesQualifiedSuffix(qualifiedName, pattern string) bool {
	candidateParts := strings.Split(qualifiedName, "::")
	patternParts := strings.Split(pattern, "::")
	if len(patternParts) > len(candidateParts) {
		return false
	}
	offset := len(candidateParts) - len(patternParts)
	for i, p := range patternParts {
		if !strings.EqualFold(candidateParts[offset+i], p) {
			return false
		}
	}
	return true
}

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

package symbol

import "testing"

func TestIsRicherDefinition_BaseClassesWin(t *testing.T) {
	existing := Symbol{StartLine: 5, EndLine: 5}
	candidate := Symbol{StartLine: 10, EndLine: 10, BaseClasses: []string{"BaseWidget"}}

	if !IsRicherDefinition(candidate, existing) {
		t.Fatal("candidate with base classes should be richer than one without")
	}
	if IsRicherDefinition(existing, candidate) {
		t.Fatal("anti-symmetry violated: existing should not be richer once candidate wins")
	}
}

func TestIsRicherDefinition_LargerSpanWins(t *testing.T) {
	existing := Symbol{StartLine: 10, EndLine: 12}
	candidate := Symbol{StartLine: 10, EndLine: 20}

	if !IsRicherDefinition(candidate, existing) {
		t.Fatal("candidate with larger span should be richer")
	}
	if IsRicherDefinition(existing, candidate) {
		t.Fatal("anti-symmetry violated")
	}
}

func TestIsRicherDefinition_TieKeepsExisting(t *testing.T) {
	existing := Symbol{StartLine: 10, EndLine: 20}
	candidate := Symbol{StartLine: 1, EndLine: 11}

	if IsRicherDefinition(candidate, existing) {
		t.Fatal("identical span and no base classes should keep existing")
	}
	if IsRicherDefinition(existing, candidate) {
		t.Fatal("tie must be stable in both directions")
	}
}

func TestIsRicherDefinition_IdenticalIsStable(t *testing.T) {
	a := Symbol{StartLine: 1, EndLine: 5, BaseClasses: []string{"X"}}
	b := Symbol{StartLine: 1, EndLine: 5, BaseClasses: []string{"X"}}

	if IsRicherDefinition(a, b) || IsRicherDefinition(b, a) {
		t.Fatal("identical definitions must never displace each other")
	}
}

func TestCacheMetadata_Matches(t *testing.T) {
	base := CacheMetadata{
		IncludeDependencies:  true,
		ConfigPath:           "/proj/.cppindex/config.yaml",
		ConfigMTime:          100,
		CompileCommandsPath:  "/proj/build/compile_commands.json",
		CompileCommandsMTime: 200,
	}
	same := base
	if !base.Matches(same) {
		t.Fatal("identical metadata should match")
	}

	changed := base
	changed.ConfigMTime = 101
	if base.Matches(changed) {
		t.Fatal("changed config mtime should reject a warm load")
	}
}

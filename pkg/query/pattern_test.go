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

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		pattern string
		want    Mode
	}{
		{"Widget", ModeUnqualified},
		{"ui::Handler", ModeQualifiedSuffix},
		{"::app::ui::Handler", ModeExactGlobal},
		{"Widget.*", ModeRegex},
		{"ui::Handl.r", ModeRegex},
		{"::", ModeExactGlobal},
		{"[A-Z]+", ModeRegex},
	}
	for _, c := range cases {
		if got := Classify(c.pattern); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.pattern, got, c.want)
		}
	}
}

func TestMatchesQualifiedSuffix(t *testing.T) {
	cases := []struct {
		qualified, pattern string
		want               bool
	}{
		{"app::ui::Handler", "ui::Handler", true},
		{"legacy::ui::Handler", "ui::Handler", true},
		{"myui::Handler", "ui::Handler", false},
		{"ui::Handler", "ui::Handler", true},
		{"ui::Handler", "app::ui::Handler", false},
		{"UI::Handler", "ui::handler", true},
	}
	for _, c := range cases {
		if got := matchesQualifiedSuffix(c.qualified, c.pattern); got != c.want {
			t.Errorf("matchesQualifiedSuffix(%q, %q) = %v, want %v", c.qualified, c.pattern, got, c.want)
		}
	}
}

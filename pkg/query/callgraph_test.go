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
	"testing"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// callGraphFixture wires up A -> B -> C -> D, a straight-line call chain,
// plus an unrelated call from A to X with no path onward.
func callGraphFixture() *mockBackend {
	return &mockBackend{
		symbols: []symbol.Symbol{
			{USR: "u:A", Name: "A", QualifiedName: "app::A", Kind: symbol.KindFunction},
			{USR: "u:B", Name: "B", QualifiedName: "app::B", Kind: symbol.KindFunction},
			{USR: "u:C", Name: "C", QualifiedName: "app::C", Kind: symbol.KindFunction},
			{USR: "u:D", Name: "D", QualifiedName: "app::D", Kind: symbol.KindFunction},
			{USR: "u:X", Name: "X", QualifiedName: "app::X", Kind: symbol.KindFunction},
		},
		callSites: []symbol.CallSite{
			{CallerUSR: "u:A", CalleeUSR: "u:B", File: "a.cpp", Line: 10},
			{CallerUSR: "u:B", CalleeUSR: "u:C", File: "b.cpp", Line: 20},
			{CallerUSR: "u:C", CalleeUSR: "u:D", File: "c.cpp", Line: 30},
			{CallerUSR: "u:A", CalleeUSR: "u:X", File: "a.cpp", Line: 11},
		},
	}
}

func TestFindCallers(t *testing.T) {
	b := callGraphFixture()
	groups, err := FindCallers(context.Background(), b, "app::B")
	if err != nil {
		t.Fatalf("FindCallers: %v", err)
	}
	if len(groups) != 1 || groups[0].Caller.QualifiedName != "app::A" {
		t.Fatalf("got %+v, want exactly one caller group from app::A", groups)
	}
}

func TestFindCallees(t *testing.T) {
	b := callGraphFixture()
	callees, err := FindCallees(context.Background(), b, "app::A")
	if err != nil {
		t.Fatalf("FindCallees: %v", err)
	}
	if len(callees) != 2 {
		t.Fatalf("got %d callees, want 2 (B and X)", len(callees))
	}
}

func TestGetCallSites(t *testing.T) {
	b := callGraphFixture()
	sites, err := GetCallSites(context.Background(), b, "app::A")
	if err != nil {
		t.Fatalf("GetCallSites: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("got %d call sites, want 2", len(sites))
	}
}

func TestGetCallPathFindsChain(t *testing.T) {
	b := callGraphFixture()
	paths, err := GetCallPath(context.Background(), b, "app::A", "app::D", 0)
	if err != nil {
		t.Fatalf("GetCallPath: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(paths))
	}
	want := []string{"u:A", "u:B", "u:C", "u:D"}
	got := paths[0]
	if len(got) != len(want) {
		t.Fatalf("got path %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got path %v, want %v", got, want)
		}
	}
}

func TestGetCallPathRespectsMaxDepth(t *testing.T) {
	b := callGraphFixture()
	paths, err := GetCallPath(context.Background(), b, "app::A", "app::D", 2)
	if err != nil {
		t.Fatalf("GetCallPath: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("got %d paths, want 0 (D is 3 hops away, maxDepth=2)", len(paths))
	}
}

func TestGetCallPathNoPathReturnsEmpty(t *testing.T) {
	b := callGraphFixture()
	paths, err := GetCallPath(context.Background(), b, "app::X", "app::D", 0)
	if err != nil {
		t.Fatalf("GetCallPath: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("got %d paths, want 0 (X has no outgoing calls)", len(paths))
	}
}

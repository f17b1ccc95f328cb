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

	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

const (
	maxCallGraphNodes = 5000
	defaultMaxDepth   = 10
)

// CallerGroup is one entry of find_callers(F)'s response: every call site
// grouped by the caller that made it.
type CallerGroup struct {
	Caller    symbol.Symbol      `json:"caller"`
	CallSites []symbol.CallSite `json:"call_sites"`
}

// resolveTarget turns F (a USR or a qualified/simple name) into the USR(s)
// it refers to, per spec §4.5 "callee matching F by USR or by name after
// qualification".
func resolveTarget(ctx context.Context, backend storage.Backend, target string) ([]string, error) {
	if byUSR, err := backend.LoadSymbolByUSR(ctx, target); err == nil && byUSR != nil {
		return []string{byUSR.USR}, nil
	}
	syms, err := Search(ctx, backend, target, storage.SearchFilters{})
	if err != nil {
		return nil, err
	}
	usrs := make([]string, 0, len(syms))
	for _, s := range syms {
		usrs = append(usrs, s.USR)
	}
	return usrs, nil
}

// FindCallers resolves F and returns every call site whose callee matches,
// grouped by the caller's own definition symbol.
func FindCallers(ctx context.Context, backend storage.Backend, target string) ([]CallerGroup, error) {
	usrs, err := resolveTarget(ctx, backend, target)
	if err != nil {
		return nil, err
	}

	byCaller := make(map[string][]symbol.CallSite)
	for _, usr := range usrs {
		sites, err := backend.GetCallSitesByCallee(ctx, usr)
		if err != nil {
			return nil, err
		}
		for _, cs := range sites {
			byCaller[cs.CallerUSR] = append(byCaller[cs.CallerUSR], cs)
		}
	}

	out := make([]CallerGroup, 0, len(byCaller))
	for callerUSR, sites := range byCaller {
		caller, err := backend.LoadSymbolByUSR(ctx, callerUSR)
		if err != nil {
			return nil, err
		}
		if caller == nil {
			continue
		}
		out = append(out, CallerGroup{Caller: *caller, CallSites: sites})
	}
	return out, nil
}

// FindCallees returns the definition site of every function F calls.
func FindCallees(ctx context.Context, backend storage.Backend, target string) ([]symbol.Symbol, error) {
	usrs, err := resolveTarget(ctx, backend, target)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []symbol.Symbol
	for _, usr := range usrs {
		sites, err := backend.GetCallSitesByCaller(ctx, usr)
		if err != nil {
			return nil, err
		}
		for _, cs := range sites {
			calleeUSR := cs.CalleeUSR
			if calleeUSR == "" || seen[calleeUSR] {
				continue
			}
			seen[calleeUSR] = true
			callee, err := backend.LoadSymbolByUSR(ctx, calleeUSR)
			if err != nil {
				return nil, err
			}
			if callee != nil {
				out = append(out, *callee)
			}
		}
	}
	return out, nil
}

// GetCallSites returns every call F's body makes, in source order within
// each resolved overload.
func GetCallSites(ctx context.Context, backend storage.Backend, target string) ([]symbol.CallSite, error) {
	usrs, err := resolveTarget(ctx, backend, target)
	if err != nil {
		return nil, err
	}
	var out []symbol.CallSite
	for _, usr := range usrs {
		sites, err := backend.GetCallSitesByCaller(ctx, usr)
		if err != nil {
			return nil, err
		}
		out = append(out, sites...)
	}
	return out, nil
}

type pathNode struct {
	usr  string
	path []string
}

// inPath reports whether usr already appears in path, the per-path cycle
// guard that keeps each reported path simple without forbidding a node
// from being revisited via a different route.
func inPath(path []string, usr string) bool {
	for _, p := range path {
		if p == usr {
			return true
		}
	}
	return false
}

// GetCallPath runs a breadth-first search over the calls relation from A
// to B, returning ALL simple paths (no repeated node within a single
// path) up to maxDepth edges, bounded by maxCallGraphNodes explored nodes
// so an unbounded recursive call graph cannot stall the query. Cycle
// avoidance is per-path, not global: a node reached once by one route can
// still be reached again by another, so a diamond call graph (A->B->D,
// A->C->D) reports both A->D paths rather than just the first one found.
func GetCallPath(ctx context.Context, backend storage.Backend, from, to string, maxDepth int) ([][]string, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	fromUSRs, err := resolveTarget(ctx, backend, from)
	if err != nil {
		return nil, err
	}
	toUSRs, err := resolveTarget(ctx, backend, to)
	if err != nil {
		return nil, err
	}
	if len(fromUSRs) == 0 || len(toUSRs) == 0 {
		return nil, nil
	}
	targetSet := make(map[string]bool, len(toUSRs))
	for _, u := range toUSRs {
		targetSet[u] = true
	}

	var paths [][]string
	explored := 0

	for _, start := range fromUSRs {
		queue := []pathNode{{usr: start, path: []string{start}}}

		for len(queue) > 0 {
			if explored >= maxCallGraphNodes {
				break
			}
			select {
			case <-ctx.Done():
				return paths, ctx.Err()
			default:
			}

			cur := queue[0]
			queue = queue[1:]
			explored++

			if targetSet[cur.usr] && len(cur.path) > 1 {
				paths = append(paths, append([]string{}, cur.path...))
				continue
			}
			if len(cur.path) > maxDepth {
				continue
			}

			callees, err := backend.GetCallSitesByCaller(ctx, cur.usr)
			if err != nil {
				return nil, err
			}
			for _, cs := range callees {
				if cs.CalleeUSR == "" || inPath(cur.path, cs.CalleeUSR) {
					continue
				}
				queue = append(queue, pathNode{usr: cs.CalleeUSR, path: append(append([]string{}, cur.path...), cs.CalleeUSR)})
			}
		}
	}
	return paths, nil
}

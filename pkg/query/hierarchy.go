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
	"strings"

	"github.com/andreymedv/cppindex/pkg/storage"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

const defaultMaxNodes = 200

// HierarchyNode is one entry of a get_class_hierarchy response.
type HierarchyNode struct {
	Name            string   `json:"name"`
	Kind            symbol.Kind `json:"kind"`
	BaseClasses     []string `json:"base_classes"`
	DerivedClasses  []string `json:"derived_classes"`
	IsProject       bool     `json:"is_project"`
	IsUnresolved    bool     `json:"is_unresolved,omitempty"`
}

// Hierarchy is get_class_hierarchy's response shape.
type Hierarchy struct {
	QueriedClass  string                    `json:"queried_class"`
	Classes       map[string]*HierarchyNode `json:"classes"`
	Truncated     bool                      `json:"truncated,omitempty"`
	NodesReturned int                       `json:"nodes_returned"`
}

// classGraph is the adjacency structure hierarchyGraph builds once from
// every class/struct-kind symbol, keyed by qualified name.
type classGraph struct {
	byQualified   map[string]symbol.Symbol
	derivedByBase map[string][]string // base qualified name -> derived qualified names
}

// buildClassGraph loads every class-shaped symbol and builds the
// derived-by-base adjacency map, excluding template-parameter bases per
// spec §4.5 and following Template<Concrete> indirection when Template is
// itself known to derive from its own template parameter.
func buildClassGraph(ctx context.Context, backend storage.Backend) (*classGraph, error) {
	g := &classGraph{
		byQualified:   make(map[string]symbol.Symbol),
		derivedByBase: make(map[string][]string),
	}

	var all []symbol.Symbol
	for _, k := range ClassKinds {
		syms, err := backend.LoadSymbolsByKind(ctx, k)
		if err != nil {
			return nil, err
		}
		all = append(all, syms...)
	}
	for _, s := range all {
		if existing, ok := g.byQualified[s.QualifiedName]; !ok || symbol.IsRicherDefinition(s, existing) {
			g.byQualified[s.QualifiedName] = s
		}
	}

	// Index of which classes derive from their own template parameter, so
	// Template<Concrete> bases can be resolved to Concrete.
	selfParamDerivers := make(map[string]bool)
	for qn, s := range g.byQualified {
		params := templateParamNames(s)
		for _, b := range s.BaseClasses {
			if params[strings.TrimSpace(b)] {
				selfParamDerivers[qn] = true
				break
			}
		}
	}

	for qn, s := range g.byQualified {
		paramBases := templateParamNames(s)
		for _, base := range s.BaseClasses {
			baseName := strings.TrimSpace(base)
			if paramBases[baseName] {
				// A base that is literally the template parameter's name:
				// not a real edge.
				continue
			}
			if tmpl, concrete, ok := splitTemplateInstantiation(baseName); ok && selfParamDerivers[tmpl] {
				g.derivedByBase[concrete] = append(g.derivedByBase[concrete], qn)
				continue
			}
			g.derivedByBase[baseName] = append(g.derivedByBase[baseName], qn)
		}
	}
	return g, nil
}

// nonParamBaseClasses returns s's base classes with the ones that are
// literally its own template parameter names excluded, the same filter
// buildClassGraph applies when building derivedByBase, so the ancestor
// direction of GetClassHierarchy's BFS doesn't surface a template parameter
// as a spurious unresolved base.
func nonParamBaseClasses(s symbol.Symbol) []string {
	params := templateParamNames(s)
	out := make([]string, 0, len(s.BaseClasses))
	for _, b := range s.BaseClasses {
		if params[strings.TrimSpace(b)] {
			continue
		}
		out = append(out, b)
	}
	return out
}

// templateParamNames returns the set of s's own template parameter names.
func templateParamNames(s symbol.Symbol) map[string]bool {
	out := make(map[string]bool, len(s.TemplateParameters))
	for _, p := range s.TemplateParameters {
		out[p.Name] = true
	}
	return out
}

// splitTemplateInstantiation parses "Template<Concrete>" into ("Template",
// "Concrete"), reporting ok=false for anything without exactly one
// top-level angle-bracket argument (multi-argument templates are not
// followed through indirection).
func splitTemplateInstantiation(s string) (tmpl, arg string, ok bool) {
	open := strings.IndexByte(s, '<')
	if open < 0 || !strings.HasSuffix(s, ">") {
		return "", "", false
	}
	inner := s[open+1 : len(s)-1]
	if strings.Contains(inner, ",") || strings.Contains(inner, "<") {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), strings.TrimSpace(inner), true
}

// GetClassHierarchy runs the bidirectional BFS closure described in spec
// §4.5: ancestors via each node's own base_classes, descendants via the
// derivedByBase adjacency map. Ancestors are expanded only upward and
// descendants only downward, so siblings of the queried class (other
// classes derived from one of its ancestors) are not reached. Bounded by
// maxNodes (0 means defaultMaxNodes) and optional maxDepth (0 means
// unbounded depth).
func GetClassHierarchy(ctx context.Context, backend storage.Backend, className string, maxNodes, maxDepth int) (*Hierarchy, *AmbiguityResult, error) {
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}

	root, ambiguous, err := ClassInfo(ctx, backend, className)
	if err != nil {
		return nil, nil, err
	}
	if ambiguous != nil {
		return nil, ambiguous, nil
	}
	if root == nil {
		return nil, nil, nil
	}

	g, err := buildClassGraph(ctx, backend)
	if err != nil {
		return nil, nil, err
	}

	type queued struct {
		qualified string
		depth     int
		dir       int // 0: the root, expanded both ways; 1: ancestor; 2: descendant
	}

	visited := map[string]bool{root.QualifiedName: true}
	queue := []queued{{root.QualifiedName, 0, 0}}
	order := []string{root.QualifiedName}
	truncated := false

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}

		var neighbors []queued
		if cur.dir != 2 {
			for _, b := range nonParamBaseClasses(g.byQualified[cur.qualified]) {
				neighbors = append(neighbors, queued{b, cur.depth + 1, 1})
			}
		}
		if cur.dir != 1 {
			for _, d := range g.derivedByBase[cur.qualified] {
				neighbors = append(neighbors, queued{d, cur.depth + 1, 2})
			}
		}

		for _, nb := range neighbors {
			n := strings.TrimSpace(nb.qualified)
			if n == "" || visited[n] {
				continue
			}
			if len(order) >= maxNodes {
				truncated = true
				continue
			}
			visited[n] = true
			order = append(order, n)
			nb.qualified = n
			queue = append(queue, nb)
		}
	}

	classes := make(map[string]*HierarchyNode, len(order))
	for _, qn := range order {
		s, known := g.byQualified[qn]
		node := &HierarchyNode{DerivedClasses: g.derivedByBase[qn]}
		if known {
			node.Name = s.Name
			node.Kind = s.Kind
			node.BaseClasses = s.BaseClasses
			node.IsProject = s.IsProject
		} else {
			node.Name = qn
			node.IsUnresolved = true
		}
		classes[qn] = node
	}

	return &Hierarchy{
		QueriedClass:  root.QualifiedName,
		Classes:       classes,
		Truncated:     truncated,
		NodesReturned: len(order),
	}, nil, nil
}

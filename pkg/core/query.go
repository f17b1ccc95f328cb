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

package core

import (
	"context"
	"sort"
	"time"

	"github.com/andreymedv/cppindex/pkg/fallback"
	"github.com/andreymedv/cppindex/pkg/query"
	"github.com/andreymedv/cppindex/pkg/state"
	"github.com/andreymedv/cppindex/pkg/storage"
)

// gate runs the query-readiness check (spec §4.6) for the currently
// bound project, returning the backend to query against and whether the
// result must be marked partial.
func (c *Core) gate(ctx context.Context) (*boundProject, bool, error) {
	bp, err := c.snapshot()
	if err != nil {
		return nil, false, err
	}
	partial, err := state.Gate(ctx, bp.machine, bp.policy)
	if err != nil {
		return nil, false, err
	}
	return bp, partial, nil
}

func (c *Core) call(tool string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.log.record(tool, start, err)
	return err
}

func emptyFallback(ctx context.Context, backend storage.Backend, pattern, fileName string) (any, []string) {
	r := fallback.Analyze(ctx, backend, pattern, fileName)
	if r == nil {
		return nil, nil
	}
	return r, nil
}

func searchEnvelope(ctx context.Context, bp *boundProject, pattern string, filters storage.SearchFilters, partial bool) (state.Envelope, error) {
	results, total, err := query.SearchWithTotal(ctx, bp.orch.Backend(), pattern, filters)
	if err != nil {
		return state.Envelope{}, err
	}
	capped := filters.MaxResults > 0 && total > len(results)

	var fb any
	var suggestions []string
	if len(results) == 0 {
		fb, suggestions = emptyFallback(ctx, bp.orch.Backend(), pattern, "")
	}
	return state.BuildEnvelope(results, len(results), capped, total, suggestions, fb, partial, bp.progress.Snapshot()), nil
}

// SearchClasses implements search_classes: pattern search restricted to
// class/struct/union/template kinds.
func (c *Core) SearchClasses(ctx context.Context, pattern string, filters storage.SearchFilters) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("search_classes", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		if len(filters.Kinds) == 0 {
			filters.Kinds = query.ClassKinds
		}
		env, err = searchEnvelope(ctx, bp, pattern, filters, partial)
		return err
	})
	return env, err
}

// SearchFunctions implements search_functions: pattern search restricted
// to function/method/constructor/destructor/template kinds.
func (c *Core) SearchFunctions(ctx context.Context, pattern string, filters storage.SearchFilters) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("search_functions", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		if len(filters.Kinds) == 0 {
			filters.Kinds = query.FunctionKinds
		}
		env, err = searchEnvelope(ctx, bp, pattern, filters, partial)
		return err
	})
	return env, err
}

// SearchSymbols implements search_symbols: unrestricted pattern search
// across every symbol kind.
func (c *Core) SearchSymbols(ctx context.Context, pattern string, filters storage.SearchFilters) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("search_symbols", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		env, err = searchEnvelope(ctx, bp, pattern, filters, partial)
		return err
	})
	return env, err
}

// GetClassInfo implements get_class_info: resolve a class by simple or
// qualified name, reporting ambiguity across namespaces.
func (c *Core) GetClassInfo(ctx context.Context, name string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_class_info", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		match, ambiguous, err := query.ClassInfo(ctx, bp.orch.Backend(), name)
		if err != nil {
			return err
		}
		if ambiguous != nil {
			env = state.BuildEnvelope(ambiguous, 0, false, 0, nil, nil, partial, bp.progress.Snapshot())
			return nil
		}
		if match == nil {
			fb, suggestions := emptyFallback(ctx, bp.orch.Backend(), name, "")
			env = state.BuildEnvelope(nil, 0, false, 0, suggestions, fb, partial, bp.progress.Snapshot())
			return nil
		}
		env = state.BuildEnvelope(match, 1, false, 1, nil, nil, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetFunctionSignature implements get_function_signature: resolve a
// function/method by simple or qualified name, reporting ambiguity the
// same way get_class_info does.
func (c *Core) GetFunctionSignature(ctx context.Context, name string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_function_signature", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		matches, total, err := query.SearchWithTotal(ctx, bp.orch.Backend(), name, storage.SearchFilters{Kinds: query.FunctionKinds})
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fb, suggestions := emptyFallback(ctx, bp.orch.Backend(), name, "")
			env = state.BuildEnvelope(nil, 0, false, 0, suggestions, fb, partial, bp.progress.Snapshot())
			return nil
		}
		distinctNamespaces := make(map[string]bool)
		for _, m := range matches {
			distinctNamespaces[m.Namespace] = true
		}
		if len(distinctNamespaces) > 1 {
			entries := make([]query.AmbiguousEntry, 0, len(matches))
			for _, m := range matches {
				entries = append(entries, query.AmbiguousEntry{
					Name: m.Name, QualifiedName: m.QualifiedName, Namespace: m.Namespace,
					Kind: m.Kind, File: m.File, Line: m.Line,
				})
			}
			amb := &query.AmbiguityResult{IsAmbiguous: true, Matches: entries, Suggestion: "Use qualified name"}
			env = state.BuildEnvelope(amb, 0, false, 0, nil, nil, partial, bp.progress.Snapshot())
			return nil
		}
		env = state.BuildEnvelope(matches, len(matches), false, total, nil, nil, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetTypeAliasInfo implements get_type_alias_info.
func (c *Core) GetTypeAliasInfo(ctx context.Context, name string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_type_alias_info", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		info, ambiguous, err := query.GetTypeAliasInfo(ctx, bp.orch.Backend(), name)
		if err != nil {
			return err
		}
		if ambiguous != nil {
			env = state.BuildEnvelope(ambiguous, 0, false, 0, nil, nil, partial, bp.progress.Snapshot())
			return nil
		}
		if info == nil {
			env = state.BuildEnvelope(nil, 0, false, 0, nil, nil, partial, bp.progress.Snapshot())
			return nil
		}
		env = state.BuildEnvelope(info, len(info.Aliases), false, len(info.Aliases), nil, nil, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// FindInFile implements find_in_file: every symbol whose file matches
// filePattern (endswith, bare name, or glob).
func (c *Core) FindInFile(ctx context.Context, filePattern string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("find_in_file", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		matched, err := query.FindInFile(ctx, bp.orch.Backend(), filePattern)
		if err != nil {
			return err
		}
		var fb any
		if len(matched) == 0 {
			fb, _ = emptyFallback(ctx, bp.orch.Backend(), "", filePattern)
		}
		env = state.BuildEnvelope(matched, len(matched), false, len(matched), nil, fb, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetFilesContainingSymbol implements get_files_containing_symbol:
// distinct files across every symbol matching name.
func (c *Core) GetFilesContainingSymbol(ctx context.Context, name string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_files_containing_symbol", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		matches, err := query.Search(ctx, bp.orch.Backend(), name, storage.SearchFilters{})
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		var files []string
		for _, m := range matches {
			if !seen[m.File] {
				seen[m.File] = true
				files = append(files, m.File)
			}
		}
		sort.Strings(files)
		var fb any
		var suggestions []string
		if len(files) == 0 {
			fb, suggestions = emptyFallback(ctx, bp.orch.Backend(), name, "")
		}
		env = state.BuildEnvelope(files, len(files), false, len(files), suggestions, fb, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetClassHierarchy implements get_class_hierarchy.
func (c *Core) GetClassHierarchy(ctx context.Context, className string, maxNodes, maxDepth int) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_class_hierarchy", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		h, ambiguous, err := query.GetClassHierarchy(ctx, bp.orch.Backend(), className, maxNodes, maxDepth)
		if err != nil {
			return err
		}
		if ambiguous != nil {
			env = state.BuildEnvelope(ambiguous, 0, false, 0, nil, nil, partial, bp.progress.Snapshot())
			return nil
		}
		if h == nil {
			fb, suggestions := emptyFallback(ctx, bp.orch.Backend(), className, "")
			env = state.BuildEnvelope(nil, 0, false, 0, suggestions, fb, partial, bp.progress.Snapshot())
			return nil
		}
		env = state.BuildEnvelope(h, h.NodesReturned, h.Truncated, h.NodesReturned, nil, nil, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// FindCallers implements find_callers(F).
func (c *Core) FindCallers(ctx context.Context, target string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("find_callers", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		groups, err := query.FindCallers(ctx, bp.orch.Backend(), target)
		if err != nil {
			return err
		}
		var fb any
		if len(groups) == 0 {
			fb, _ = emptyFallback(ctx, bp.orch.Backend(), target, "")
		}
		env = state.BuildEnvelope(groups, len(groups), false, len(groups), nil, fb, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// FindCallees implements find_callees(F).
func (c *Core) FindCallees(ctx context.Context, target string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("find_callees", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		callees, err := query.FindCallees(ctx, bp.orch.Backend(), target)
		if err != nil {
			return err
		}
		var fb any
		if len(callees) == 0 {
			fb, _ = emptyFallback(ctx, bp.orch.Backend(), target, "")
		}
		env = state.BuildEnvelope(callees, len(callees), false, len(callees), nil, fb, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetCallSites implements get_call_sites(F).
func (c *Core) GetCallSites(ctx context.Context, target string) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_call_sites", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		sites, err := query.GetCallSites(ctx, bp.orch.Backend(), target)
		if err != nil {
			return err
		}
		var fb any
		if len(sites) == 0 {
			fb, _ = emptyFallback(ctx, bp.orch.Backend(), target, "")
		}
		env = state.BuildEnvelope(sites, len(sites), false, len(sites), nil, fb, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

// GetCallPath implements get_call_path(A, B, max_depth).
func (c *Core) GetCallPath(ctx context.Context, from, to string, maxDepth int) (state.Envelope, error) {
	var env state.Envelope
	err := c.call("get_call_path", func() error {
		bp, partial, err := c.gate(ctx)
		if err != nil {
			return err
		}
		paths, err := query.GetCallPath(ctx, bp.orch.Backend(), from, to, maxDepth)
		if err != nil {
			return err
		}
		env = state.BuildEnvelope(paths, len(paths), false, len(paths), nil, nil, partial, bp.progress.Snapshot())
		return nil
	})
	return env, err
}

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

// TypeAliasInfo is get_type_alias_info's non-ambiguous response shape.
type TypeAliasInfo struct {
	CanonicalType string             `json:"canonical_type"`
	Aliases       []symbol.TypeAlias `json:"aliases"`
}

// GetTypeAliasInfo resolves name either as a canonical type (returning
// every alias pointing to it) or as an alias name itself (returning the
// canonical type plus its sibling aliases), per spec §4.5. GetTypeAliases
// matches name against alias name, alias qualified name, and canonical
// type in one pass, so a canonical-type query and an alias-name query
// reach the same code path here; when name is itself used as an alias
// under more than one distinct canonical type, the lookup is ambiguous,
// mirroring get_class_info's shape.
func GetTypeAliasInfo(ctx context.Context, backend storage.Backend, name string) (*TypeAliasInfo, *AmbiguityResult, error) {
	matches, err := backend.GetTypeAliases(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, nil
	}

	canonicals := make(map[string]bool)
	for _, a := range matches {
		canonicals[a.CanonicalType] = true
	}
	if len(canonicals) > 1 {
		entries := make([]AmbiguousEntry, 0, len(matches))
		for _, a := range matches {
			entries = append(entries, AmbiguousEntry{
				Name: a.AliasName, QualifiedName: a.AliasQualifiedName,
				File: a.File, Line: a.Line,
			})
		}
		return nil, &AmbiguityResult{IsAmbiguous: true, Matches: entries, Suggestion: "Use qualified name"}, nil
	}

	canonical := matches[0].CanonicalType
	siblings := matches
	if canonical != name {
		// name resolved as an alias; re-query by its canonical type so the
		// result includes every sibling alias, not just name itself.
		siblings, err = backend.GetTypeAliases(ctx, canonical)
		if err != nil {
			return nil, nil, err
		}
	}
	return &TypeAliasInfo{CanonicalType: canonical, Aliases: siblings}, nil, nil
}

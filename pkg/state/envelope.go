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

package state

// Status is the metadata.status discriminant of spec §4.6's envelope
// table.
type Status string

const (
	StatusEmpty     Status = "empty"
	StatusTruncated Status = "truncated"
	StatusLarge     Status = "large"
	StatusPartial   Status = "partial"
)

// Metadata is the envelope's metadata block. Only the fields relevant to
// Status are populated; the rest are left at zero value and omitted by
// Envelope's marshaling tag discipline in pkg/core.
type Metadata struct {
	Status               Status      `json:"status"`
	Suggestions          []string    `json:"suggestions,omitempty"`
	Fallback             any         `json:"fallback,omitempty"`
	Returned             int         `json:"returned,omitempty"`
	TotalMatches         int         `json:"total_matches,omitempty"`
	ResultCount          int         `json:"result_count,omitempty"`
	Hint                 string      `json:"hint,omitempty"`
	Warning              string      `json:"warning,omitempty"`
	IndexedFiles         int64       `json:"indexed_files,omitempty"`
	TotalFiles           int64       `json:"total_files,omitempty"`
	CompletionPercentage float64     `json:"completion_percentage,omitempty"`
}

// Envelope is the query-result wrapper. Metadata is nil for the "silence
// = success" normal case: 1-20 items, fully indexed. Marshal Envelope
// directly — a nil Metadata is omitted by its `omitempty` tag.
type Envelope struct {
	Data     any       `json:"data"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// largeResultThreshold is the item count above which an unbounded,
// non-truncated result is flagged "large" so a client knows to narrow
// its query, per spec §4.6.
const largeResultThreshold = 20

// BuildEnvelope assembles the envelope for one query result following the
// precedence spec §4.6 specifies: partial beats every other condition.
//
//   - count: number of items in data.
//   - capped: true when max_results truncated the result (so count ==
//     the cap, not the true total).
//   - totalMatches: the true total match count, only meaningful when capped.
//   - emptyFallback: smart-fallback payload (pkg/fallback), attached only
//     when count == 0.
//   - partial: true when the caller's state.Gate returned partial.
//   - progress: the current indexing progress, used when partial.
func BuildEnvelope(data any, count int, capped bool, totalMatches int, suggestions []string, emptyFallback any, partial bool, progress Progress) Envelope {
	if partial {
		return Envelope{
			Data: data,
			Metadata: &Metadata{
				Status:               StatusPartial,
				Warning:              "index is not fully built; results may be incomplete",
				IndexedFiles:         progress.IndexedFiles,
				TotalFiles:           progress.TotalFiles,
				CompletionPercentage: progress.CompletionPercentage,
			},
		}
	}

	if count == 0 {
		return Envelope{
			Data: data,
			Metadata: &Metadata{
				Status:      StatusEmpty,
				Suggestions: suggestions,
				Fallback:    emptyFallback,
			},
		}
	}

	if capped {
		return Envelope{
			Data: data,
			Metadata: &Metadata{
				Status:       StatusTruncated,
				Returned:     count,
				TotalMatches: totalMatches,
			},
		}
	}

	if count > largeResultThreshold {
		return Envelope{
			Data: data,
			Metadata: &Metadata{
				Status:      StatusLarge,
				ResultCount: count,
				Hint:        "narrow the query with filters (namespace, file_name, kind) for a more specific result",
			},
		}
	}

	// Normal result: 1..20 items, fully indexed. No metadata block.
	return Envelope{Data: data}
}

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

import (
	"context"
	"fmt"
	"time"

	cerrors "github.com/andreymedv/cppindex/internal/errors"
)

// Policy is the runtime-configurable query behavior when the core is not
// yet INDEXED. See spec §4.6.
type Policy int

const (
	AllowPartial Policy = iota // default: respond with partial flag
	Block                      // wait up to a bounded timeout for INDEXED
	Reject                     // error immediately with guidance
)

// ParsePolicy maps the configuration surface's query_behavior_policy
// string (spec §6) to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "allow_partial":
		return AllowPartial, nil
	case "block":
		return Block, nil
	case "reject":
		return Reject, nil
	default:
		return AllowPartial, fmt.Errorf("unknown query_behavior_policy %q", s)
	}
}

// blockCeiling is the fixed ceiling for the BLOCK policy, per spec §5
// ("BLOCK policy has a fixed 30s ceiling").
const blockCeiling = 30 * time.Second

// Gate enforces the query-readiness rule and policy before a tool call
// proceeds. It returns (partial, err): partial is true when the caller
// should attach the partial-result metadata block; err is a *UserError
// when Reject fires on a not-yet-ready state.
func Gate(ctx context.Context, m *Machine, policy Policy) (partial bool, err error) {
	current := m.Current()
	if current.QueryReady() && current != Indexing && current != Refreshing {
		return false, nil
	}
	if !current.QueryReady() {
		return false, cerrors.NewUserError(
			"project is not ready for queries (state=%s); call set_project_directory first", current)
	}

	switch policy {
	case AllowPartial:
		return true, nil
	case Reject:
		return false, cerrors.NewUserError(
			"indexing in progress (state=%s); query rejected by configured policy", current)
	case Block:
		if waitErr := m.WaitIndexed(ctx, blockCeiling); waitErr != nil {
			// Ceiling reached: respond anyway, marked partial, rather
			// than failing the call outright.
			return true, nil
		}
		return false, nil
	default:
		return true, nil
	}
}

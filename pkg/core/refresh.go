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

import "context"

// RefreshProject runs an incremental refresh against the currently bound
// project: hash-diff, dependency fan-out, delete-then-reparse of changed
// files, per spec §4.4. The core stays query-ready throughout (state
// REFRESHING remains in QueryReady()).
func (c *Core) RefreshProject(ctx context.Context) error {
	bp, err := c.snapshot()
	if err != nil {
		return err
	}
	return bp.indexer.IncrementalRefresh(ctx)
}

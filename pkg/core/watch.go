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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSkipDirs mirrors the teacher's fsnotify watch loop: directories
// that are never worth a watch descriptor.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".cppindex": true, "bin": true,
}

const watchDebounce = 2 * time.Second

// WatchAndRefresh watches the bound project's source tree and runs an
// incremental refresh (spec §4.4) on a debounced timer after any file
// change, until ctx is cancelled. It does not consult project.yaml's
// auto_refresh; whoever calls it decides whether to watch. Errors from a
// given refresh attempt are swallowed past logging — a later refresh
// (triggered by the next batch of changes, or the next WatchAndRefresh
// call) naturally retries.
func (c *Core) WatchAndRefresh(ctx context.Context) error {
	bp, err := c.snapshot()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	_ = filepath.Walk(bp.identity.SourceDirectory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(bp.identity.SourceDirectory)) {
			return filepath.SkipDir
		}
		if werr := watcher.Add(path); werr == nil {
			watched++
		}
		return nil
	})
	c.logger.Info("core.watch.start", "dirs_watched", watched, "source_dir", bp.identity.SourceDirectory)

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(watchDebounce)
			fire = debounce.C
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("core.watch.fsnotify_error", "err", werr)
		case <-fire:
			fire = nil
			if err := c.RefreshProject(ctx); err != nil {
				c.logger.Warn("core.watch.refresh_failed", "err", err)
			}
		}
	}
}

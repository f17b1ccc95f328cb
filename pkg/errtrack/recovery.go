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

package errtrack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// RecoveryManager takes timestamped backups, restores from backup, clears
// the cache directory as a last resort, and drives repair attempts for
// corruption-class errors. A repair attempt is an integrity check plus a
// backup of a store that fails it; the store itself is not dumped,
// restored or rebuilt. See spec §4.3/§4.8.
type RecoveryManager struct {
	cacheDir string
	logger   *slog.Logger
}

// NewRecoveryManager scopes recovery actions to one project's cache
// directory (<cache_root>/<project_identity_hash>/).
func NewRecoveryManager(cacheDir string, logger *slog.Logger) *RecoveryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryManager{cacheDir: cacheDir, logger: logger}
}

// Backup copies filePath into a gzip-compressed, timestamped backup
// directory named name_backup_YYYYMMDD_HHMMSS per spec §6's on-disk
// layout, returning the backup's path.
func (r *RecoveryManager) Backup(filePath string) (string, error) {
	base := filepath.Base(filePath)
	stamp := time.Now().Format("20060102_150405")
	backupDir := filepath.Join(r.cacheDir, fmt.Sprintf("%s_backup_%s", base, stamp))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	src, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open source for backup: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(backupDir, base+".gz")
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create backup archive: %w", err)
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return "", fmt.Errorf("write backup archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return "", fmt.Errorf("finalize backup archive: %w", err)
	}

	r.logger.Info("errtrack.recovery.backup_created", "file", filePath, "backup", dstPath)
	return dstPath, nil
}

// Restore decompresses a backup produced by Backup back onto filePath,
// overwriting it.
func (r *RecoveryManager) Restore(backupPath, filePath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer src.Close()

	gr, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("open backup archive: %w", err)
	}
	defer gr.Close()

	tmp := filePath + ".restore.tmp"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create restore target: %w", err)
	}
	if _, err := io.Copy(dst, gr); err != nil {
		dst.Close()
		return fmt.Errorf("write restored file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("install restored file: %w", err)
	}
	r.logger.Info("errtrack.recovery.restored", "from", backupPath, "to", filePath)
	return nil
}

// IntegrityChecker is satisfied by storage.Backend's CheckIntegrity.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, full bool) (bool, error)
}

// Repair runs an integrity check; if it fails, takes a backup and reports
// repaired=false with the backup's path. It does not dump, restore or
// re-create the store, and no backend in this module does so either.
func (r *RecoveryManager) Repair(ctx context.Context, filePath string, checker IntegrityChecker) (backupPath string, repaired bool, err error) {
	ok, checkErr := checker.CheckIntegrity(ctx, true)
	if checkErr != nil {
		return "", false, fmt.Errorf("integrity check: %w", checkErr)
	}
	if ok {
		return "", true, nil
	}

	backupPath, err = r.Backup(filePath)
	if err != nil {
		return "", false, fmt.Errorf("backup before repair: %w", err)
	}

	r.logger.Warn("errtrack.recovery.corruption_detected", "file", filePath, "backup", backupPath)
	return backupPath, false, nil
}

// ClearCache deletes the entire project cache directory as a last resort
// for disk-full/permission-class errors, per spec §4.3. The caller is
// expected to reinitialize (cold build) immediately afterward.
func (r *RecoveryManager) ClearCache() error {
	r.logger.Warn("errtrack.recovery.cache_cleared", "dir", r.cacheDir)
	if err := os.RemoveAll(r.cacheDir); err != nil {
		return fmt.Errorf("clear cache dir: %w", err)
	}
	return os.MkdirAll(r.cacheDir, 0o755)
}

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

// Package migrate applies numbered schema migrations to the primary
// backend, gated by the schema_version table. Mirrors the teacher's
// pkg/storage/embedded.go migrateCallsCallLine technique (CozoDB has no
// ALTER TABLE, so the teacher migrates by copy-to-temp/drop/recreate);
// modernc.org/sqlite supports real ALTER TABLE, so migrations here are
// plain SQL scripts instead, but the gating logic (find current version,
// apply pending ones in order inside their own transaction, record
// applied_at, reject if stored version is ahead of known) is the same
// shape.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Script is one numbered migration. Statements run inside a single
// transaction; Up must be idempotent (re-applying is a no-op) per spec
// §4.1's migration contract.
type Script struct {
	Version     int
	Description string
	Up          []string
}

// Registry is the ascending, gap-free (not required, but conventionally
// so) list of migrations known to this build of the code.
var Registry = []Script{
	{
		Version:     1,
		Description: "baseline schema (symbols, fts, file_metadata, call_sites, type_aliases, file_dependencies, cache_metadata)",
		Up:          nil, // applied by SQLiteBackend.ensureSchema itself; recorded here as version 1.
	},
}

// KnownVersion is the highest version this binary understands. A store
// whose recorded schema_version exceeds this is rejected outright — the
// code is older than the data, and guessing forward is unsafe.
func KnownVersion() int {
	v := 0
	for _, s := range Registry {
		if s.Version > v {
			v = s.Version
		}
	}
	return v
}

// Apply runs every pending migration (those with version > current) in
// ascending order, each in its own transaction, and records applied_at.
// If the stored version is already ahead of KnownVersion(), it returns an
// error without touching the database — "schema version <= code's
// expected version; if higher, the store is rejected" (spec §3.2).
func Apply(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY, applied_at INTEGER NOT NULL, description TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("ensure schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read current schema version: %w", err)
	}

	if current > KnownVersion() {
		return fmt.Errorf("store schema version %d is newer than this binary's known version %d; refusing to open", current, KnownVersion())
	}

	for _, script := range Registry {
		if script.Version <= current {
			continue
		}
		if err := applyOne(ctx, db, script); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", script.Version, script.Description, err)
		}
		logger.Info("storage.migrate.applied", "version", script.Version, "description", script.Description)
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, script Script) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range script.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_version (version, applied_at, description) VALUES (?,?,?)
		ON CONFLICT(version) DO NOTHING
	`, script.Version, time.Now().Unix(), script.Description); err != nil {
		return err
	}
	return tx.Commit()
}

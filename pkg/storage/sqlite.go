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

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andreymedv/cppindex/pkg/symbol"
)

// SQLiteConfig configures the primary backend.
type SQLiteConfig struct {
	// Path is the on-disk symbols database file,
	// <cache_root>/<project_identity_hash>/symbols.db.
	Path string
	Logger *slog.Logger
}

// SQLiteBackend is the primary storage backend: a single-file transactional
// database with an FTS5 full-text index, kept coherent with the base
// `symbols` table by triggers. See spec §4.1.
//
// Mirrors pkg/storage/embedded.go's shape: a mutex-guarded handle, an
// idempotent EnsureSchema, and context-aware Query/Execute-style methods —
// generalized here from CozoDB's Datalog surface to database/sql.
type SQLiteBackend struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *slog.Logger
	closed bool
}

const (
	busyMaxRetries = 20
	busyBaseDelay  = time.Millisecond
	busyCapDelay   = time.Second
)

// NewSQLiteBackend opens (creating if absent) the symbols database and
// ensures its schema exists.
func NewSQLiteBackend(ctx context.Context, cfg SQLiteConfig) (*SQLiteBackend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite backend: %w", err)
	}
	db.SetMaxOpenConns(1) // writer serialization; readers share WAL snapshot

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	b := &SQLiteBackend{db: db, logger: logger}
	if err := b.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return b, nil
}

// withBusyRetry retries fn with exponential backoff when SQLite reports a
// locked/busy database, per spec §4.1's "exponential-backoff busy handler
// (up to ~20 retries, base 1ms, cap 1s)". PRAGMA busy_timeout handles the
// common case at the driver level; this loop covers the coarser lock
// errors that surface as immediate SQLITE_BUSY on write contention.
func withBusyRetry(ctx context.Context, fn func() error) error {
	delay := busyBaseDelay
	var err error
	for attempt := 0; attempt <= busyMaxRetries; attempt++ {
		err = fn()
		if err == nil || !isLockedErr(err) {
			return err
		}
		jitter := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
		if delay > busyCapDelay {
			delay = busyCapDelay
		}
	}
	return err
}

func isLockedErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "locked") || strings.Contains(s, "busy")
}

func (b *SQLiteBackend) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL,
			description TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS symbols (
			usr TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			qualified_name TEXT NOT NULL,
			namespace TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL DEFAULT 0,
			column INTEGER NOT NULL DEFAULT 0,
			start_line INTEGER NOT NULL DEFAULT 0,
			end_line INTEGER NOT NULL DEFAULT 0,
			header_file TEXT NOT NULL DEFAULT '',
			header_line INTEGER NOT NULL DEFAULT 0,
			header_start_line INTEGER NOT NULL DEFAULT 0,
			header_end_line INTEGER NOT NULL DEFAULT 0,
			signature TEXT NOT NULL DEFAULT '',
			access TEXT NOT NULL DEFAULT '',
			parent_class TEXT NOT NULL DEFAULT '',
			base_classes TEXT NOT NULL DEFAULT '[]',
			is_project INTEGER NOT NULL DEFAULT 0,
			is_definition INTEGER NOT NULL DEFAULT 0,
			is_virtual INTEGER NOT NULL DEFAULT 0,
			is_pure_virtual INTEGER NOT NULL DEFAULT 0,
			is_const INTEGER NOT NULL DEFAULT 0,
			is_static INTEGER NOT NULL DEFAULT 0,
			template_kind TEXT NOT NULL DEFAULT '',
			template_parameters TEXT NOT NULL DEFAULT '[]',
			primary_template_usr TEXT NOT NULL DEFAULT '',
			brief TEXT NOT NULL DEFAULT '',
			doc_comment TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_parent_class ON symbols(parent_class);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_namespace ON symbols(namespace);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_is_project ON symbols(is_project);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_composite ON symbols(name, kind, is_project);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_updated_at ON symbols(updated_at);`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
			usr UNINDEXED, name, qualified_name, content=''
		);`,
		`CREATE TRIGGER IF NOT EXISTS symbols_ai AFTER INSERT ON symbols BEGIN
			INSERT INTO symbols_fts(rowid, usr, name, qualified_name)
			VALUES (new.rowid, new.usr, new.name, new.qualified_name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS symbols_ad AFTER DELETE ON symbols BEGIN
			INSERT INTO symbols_fts(symbols_fts, rowid, usr, name, qualified_name)
			VALUES ('delete', old.rowid, old.usr, old.name, old.qualified_name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS symbols_au AFTER UPDATE ON symbols BEGIN
			INSERT INTO symbols_fts(symbols_fts, rowid, usr, name, qualified_name)
			VALUES ('delete', old.rowid, old.usr, old.name, old.qualified_name);
			INSERT INTO symbols_fts(rowid, usr, name, qualified_name)
			VALUES (new.rowid, new.usr, new.name, new.qualified_name);
		END;`,

		`CREATE TABLE IF NOT EXISTS file_metadata (
			file_path TEXT PRIMARY KEY,
			file_hash TEXT NOT NULL DEFAULT '',
			compile_args_hash TEXT NOT NULL DEFAULT '',
			indexed_at INTEGER NOT NULL DEFAULT 0,
			symbol_count INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 1,
			error_message TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0
		);`,

		`CREATE TABLE IF NOT EXISTS call_sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			caller_usr TEXT NOT NULL,
			callee_usr TEXT NOT NULL DEFAULT '',
			callee_name TEXT NOT NULL DEFAULT '',
			file TEXT NOT NULL,
			line INTEGER NOT NULL DEFAULT 0,
			column INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_sites_caller ON call_sites(caller_usr);`,
		`CREATE INDEX IF NOT EXISTS idx_call_sites_callee ON call_sites(callee_usr);`,
		`CREATE INDEX IF NOT EXISTS idx_call_sites_file ON call_sites(file);`,

		`CREATE TABLE IF NOT EXISTS type_aliases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alias_name TEXT NOT NULL,
			alias_qualified_name TEXT NOT NULL,
			canonical_type TEXT NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_type_aliases_name ON type_aliases(alias_name);`,
		`CREATE INDEX IF NOT EXISTS idx_type_aliases_canonical ON type_aliases(canonical_type);`,
		`CREATE INDEX IF NOT EXISTS idx_type_aliases_file ON type_aliases(file);`,

		`CREATE TABLE IF NOT EXISTS file_dependencies (
			source_file TEXT NOT NULL,
			included_file TEXT NOT NULL,
			is_direct INTEGER NOT NULL DEFAULT 1,
			include_depth INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (source_file, included_file)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_file_deps_included ON file_dependencies(included_file);`,

		`CREATE TABLE IF NOT EXISTS cache_metadata (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			include_dependencies INTEGER NOT NULL DEFAULT 0,
			config_path TEXT NOT NULL DEFAULT '',
			config_mtime INTEGER NOT NULL DEFAULT 0,
			compile_commands_path TEXT NOT NULL DEFAULT '',
			compile_commands_mtime INTEGER NOT NULL DEFAULT 0,
			indexed_file_count INTEGER NOT NULL DEFAULT 0
		);`,
	}

	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema stmt: %w\n%s", err, stmt)
		}
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// --- symbols ---

func (b *SQLiteBackend) SaveSymbol(ctx context.Context, s symbol.Symbol) error {
	_, err := b.SaveSymbolsBatch(ctx, []symbol.Symbol{s})
	return err
}

func (b *SQLiteBackend) SaveSymbolsBatch(ctx context.Context, symbols []symbol.Symbol) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int
	err := withBusyRetry(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, upsertSymbolSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()

		n = 0
		for _, s := range symbols {
			bases, _ := json.Marshal(s.BaseClasses)
			params, _ := json.Marshal(s.TemplateParameters)
			_, err := stmt.ExecContext(ctx,
				s.USR, s.Name, s.QualifiedName, s.Namespace, string(s.Kind),
				s.File, s.Line, s.Column, s.StartLine, s.EndLine,
				s.HeaderFile, s.HeaderLine, s.HeaderStartLine, s.HeaderEndLine,
				s.Signature, string(s.Access), s.ParentClass, string(bases),
				boolToInt(s.IsProject), boolToInt(s.IsDefinition), boolToInt(s.IsVirtual),
				boolToInt(s.IsPureVirtual), boolToInt(s.IsConst), boolToInt(s.IsStatic),
				s.TemplateKind, string(params), s.PrimaryTemplateUSR,
				s.Brief, s.DocComment, time.Now().Unix(),
			)
			if err != nil {
				return fmt.Errorf("upsert symbol %s: %w", s.USR, err)
			}
			n++
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

const upsertSymbolSQL = `
INSERT INTO symbols (
	usr, name, qualified_name, namespace, kind, file, line, column, start_line, end_line,
	header_file, header_line, header_start_line, header_end_line,
	signature, access, parent_class, base_classes,
	is_project, is_definition, is_virtual, is_pure_virtual, is_const, is_static,
	template_kind, template_parameters, primary_template_usr,
	brief, doc_comment, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?, ?,?,?,?, ?,?,?,?, ?,?,?,?,?,?, ?,?,?, ?,?,?)
ON CONFLICT(usr) DO UPDATE SET
	name=excluded.name, qualified_name=excluded.qualified_name, namespace=excluded.namespace,
	kind=excluded.kind, file=excluded.file, line=excluded.line, column=excluded.column,
	start_line=excluded.start_line, end_line=excluded.end_line,
	header_file=excluded.header_file, header_line=excluded.header_line,
	header_start_line=excluded.header_start_line, header_end_line=excluded.header_end_line,
	signature=excluded.signature, access=excluded.access, parent_class=excluded.parent_class,
	base_classes=excluded.base_classes,
	is_project=excluded.is_project, is_definition=excluded.is_definition,
	is_virtual=excluded.is_virtual, is_pure_virtual=excluded.is_pure_virtual,
	is_const=excluded.is_const, is_static=excluded.is_static,
	template_kind=excluded.template_kind, template_parameters=excluded.template_parameters,
	primary_template_usr=excluded.primary_template_usr,
	brief=excluded.brief, doc_comment=excluded.doc_comment, updated_at=excluded.updated_at
`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const symbolColumns = `usr, name, qualified_name, namespace, kind, file, line, column, start_line, end_line,
	header_file, header_line, header_start_line, header_end_line,
	signature, access, parent_class, base_classes,
	is_project, is_definition, is_virtual, is_pure_virtual, is_const, is_static,
	template_kind, template_parameters, primary_template_usr, brief, doc_comment`

func scanSymbol(scan func(...any) error) (symbol.Symbol, error) {
	var s symbol.Symbol
	var kind, access, bases, params string
	var isProject, isDef, isVirtual, isPure, isConst, isStatic int
	err := scan(
		&s.USR, &s.Name, &s.QualifiedName, &s.Namespace, &kind, &s.File, &s.Line, &s.Column,
		&s.StartLine, &s.EndLine, &s.HeaderFile, &s.HeaderLine, &s.HeaderStartLine, &s.HeaderEndLine,
		&s.Signature, &access, &s.ParentClass, &bases,
		&isProject, &isDef, &isVirtual, &isPure, &isConst, &isStatic,
		&s.TemplateKind, &params, &s.PrimaryTemplateUSR, &s.Brief, &s.DocComment,
	)
	if err != nil {
		return s, err
	}
	s.Kind = symbol.Kind(kind)
	s.Access = symbol.Access(access)
	s.IsProject = isProject != 0
	s.IsDefinition = isDef != 0
	s.IsVirtual = isVirtual != 0
	s.IsPureVirtual = isPure != 0
	s.IsConst = isConst != 0
	s.IsStatic = isStatic != 0
	_ = json.Unmarshal([]byte(bases), &s.BaseClasses)
	_ = json.Unmarshal([]byte(params), &s.TemplateParameters)
	return s, nil
}

func (b *SQLiteBackend) queryRowsToSymbols(rows *sql.Rows) ([]symbol.Symbol, error) {
	defer rows.Close()
	var out []symbol.Symbol
	for rows.Next() {
		s, err := scanSymbol(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) LoadSymbolByUSR(ctx context.Context, usr string) (*symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	row := b.db.QueryRowContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE usr = ?", usr)
	s, err := scanSymbol(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (b *SQLiteBackend) LoadSymbolsByName(ctx context.Context, name string) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE name = ?", name)
	if err != nil {
		return nil, err
	}
	return b.queryRowsToSymbols(rows)
}

func (b *SQLiteBackend) LoadSymbolsByFile(ctx context.Context, file string) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE file = ?", file)
	if err != nil {
		return nil, err
	}
	return b.queryRowsToSymbols(rows)
}

func (b *SQLiteBackend) LoadSymbolsByKind(ctx context.Context, kind symbol.Kind) ([]symbol.Symbol, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, "SELECT "+symbolColumns+" FROM symbols WHERE kind = ?", string(kind))
	if err != nil {
		return nil, err
	}
	return b.queryRowsToSymbols(rows)
}

// DeleteSymbolsByFile cascades to call sites and type aliases for file,
// matching the invariant "deleting a FileMetadata row deletes all its
// Symbols and CallSites" — ordered the way embedded.go's
// DeleteEntitiesForFile cascades child tables before the parent.
func (b *SQLiteBackend) DeleteSymbolsByFile(ctx context.Context, file string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	err := withBusyRetry(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DELETE FROM call_sites WHERE file = ?", file); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM type_aliases WHERE file = ?", file); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE file = ?", file)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	return int(n), err
}

func (b *SQLiteBackend) CountSymbols(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&n)
	return n, err
}

// --- search ---

func buildFilterClause(filters SearchFilters) (string, []any) {
	var clauses []string
	var args []any
	if filters.ProjectOnly {
		clauses = append(clauses, "is_project = 1")
	}
	if filters.FileName != "" {
		clauses = append(clauses, "file LIKE ?")
		args = append(args, "%"+filters.FileName)
	}
	if filters.Namespace != nil {
		ns := *filters.Namespace
		if ns == "" {
			clauses = append(clauses, "namespace = ''")
		} else {
			clauses = append(clauses, "(namespace = ? OR namespace LIKE ?)")
			args = append(args, ns, ns+"::%")
		}
	}
	if filters.ClassName != "" {
		clauses = append(clauses, "parent_class = ?")
		args = append(args, filters.ClassName)
	}
	if filters.SignaturePattern != "" {
		clauses = append(clauses, "LOWER(signature) LIKE ?")
		args = append(args, "%"+strings.ToLower(filters.SignaturePattern)+"%")
	}
	if len(filters.Kinds) > 0 {
		placeholders := make([]string, len(filters.Kinds))
		for i, k := range filters.Kinds {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		clauses = append(clauses, "kind IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchFTS runs pattern through the FTS5 index over name/qualified_name.
// On an FTS syntax error it falls back to SearchRegex, per spec §4.1.
func (b *SQLiteBackend) SearchFTS(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error) {
	b.mu.RLock()
	filterClause, filterArgs := buildFilterClause(filters)
	query := `SELECT ` + prefixColumns("s") + ` FROM symbols s
		JOIN symbols_fts f ON f.rowid = s.rowid
		WHERE symbols_fts MATCH ?` + filterClause
	args := append([]any{pattern}, filterArgs...)
	if filters.MaxResults > 0 {
		query += " LIMIT ?"
		args = append(args, filters.MaxResults)
	}
	rows, err := b.db.QueryContext(ctx, query, args...)
	b.mu.RUnlock()
	if err != nil {
		b.logger.Warn("storage.sqlite.fts_syntax_error", "pattern", pattern, "err", err)
		return b.SearchRegex(ctx, regexp.QuoteMeta(pattern), filters)
	}
	return b.queryRowsToSymbols(rows)
}

// SearchRegex performs a fullmatch regex scan against name or
// qualified_name. Invalid patterns return an empty slice and a warning
// log, never an error — per spec §4.1 "invalid regex -> empty + warning".
func (b *SQLiteBackend) SearchRegex(ctx context.Context, pattern string, filters SearchFilters) ([]symbol.Symbol, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		b.logger.Warn("storage.sqlite.invalid_regex", "pattern", pattern, "err", err)
		return nil, nil
	}

	b.mu.RLock()
	filterClause, filterArgs := buildFilterClause(filters)
	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE 1=1` + filterClause
	rows, err := b.db.QueryContext(ctx, query, filterArgs...)
	b.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	all, err := b.queryRowsToSymbols(rows)
	if err != nil {
		return nil, err
	}

	var out []symbol.Symbol
	for _, s := range all {
		if re.MatchString(s.Name) || re.MatchString(s.QualifiedName) {
			out = append(out, s)
			if filters.MaxResults > 0 && len(out) >= filters.MaxResults {
				break
			}
		}
	}
	return out, nil
}

func prefixColumns(alias string) string {
	cols := strings.Split(symbolColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func (b *SQLiteBackend) RebuildFTS(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, `INSERT INTO symbols_fts(symbols_fts) VALUES('rebuild');`)
	return err
}

// --- file metadata ---

func (b *SQLiteBackend) SaveFileCache(ctx context.Context, fm symbol.FileMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return withBusyRetry(ctx, func() error {
		_, err := b.db.ExecContext(ctx, `
			INSERT INTO file_metadata (file_path, file_hash, compile_args_hash, indexed_at, symbol_count, success, error_message, retry_count)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(file_path) DO UPDATE SET
				file_hash=excluded.file_hash, compile_args_hash=excluded.compile_args_hash,
				indexed_at=excluded.indexed_at, symbol_count=excluded.symbol_count,
				success=excluded.success, error_message=excluded.error_message, retry_count=excluded.retry_count
		`, fm.FilePath, fm.FileHash, fm.CompileArgsHash, fm.IndexedAt, fm.SymbolCount,
			boolToInt(fm.Success), fm.ErrorMessage, fm.RetryCount)
		return err
	})
}

func (b *SQLiteBackend) GetFileMetadata(ctx context.Context, filePath string) (*symbol.FileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var fm symbol.FileMetadata
	var success int
	err := b.db.QueryRowContext(ctx, `
		SELECT file_path, file_hash, compile_args_hash, indexed_at, symbol_count, success, error_message, retry_count
		FROM file_metadata WHERE file_path = ?`, filePath).
		Scan(&fm.FilePath, &fm.FileHash, &fm.CompileArgsHash, &fm.IndexedAt, &fm.SymbolCount, &success, &fm.ErrorMessage, &fm.RetryCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fm.Success = success != 0
	return &fm, nil
}

func (b *SQLiteBackend) ListFileMetadata(ctx context.Context) ([]symbol.FileMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `
		SELECT file_path, file_hash, compile_args_hash, indexed_at, symbol_count, success, error_message, retry_count
		FROM file_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.FileMetadata
	for rows.Next() {
		var fm symbol.FileMetadata
		var success int
		if err := rows.Scan(&fm.FilePath, &fm.FileHash, &fm.CompileArgsHash, &fm.IndexedAt, &fm.SymbolCount, &success, &fm.ErrorMessage, &fm.RetryCount); err != nil {
			return nil, err
		}
		fm.Success = success != 0
		out = append(out, fm)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) RemoveFileCache(ctx context.Context, filePath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, "DELETE FROM file_metadata WHERE file_path = ?", filePath)
	return err
}

// --- call sites ---

func (b *SQLiteBackend) SaveCallSites(ctx context.Context, file string, sites []symbol.CallSite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return withBusyRetry(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, "DELETE FROM call_sites WHERE file = ?", file); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO call_sites (caller_usr, callee_usr, callee_name, file, line, column) VALUES (?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range sites {
			if _, err := stmt.ExecContext(ctx, c.CallerUSR, c.CalleeUSR, c.CalleeName, c.File, c.Line, c.Column); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func scanCallSites(rows *sql.Rows) ([]symbol.CallSite, error) {
	defer rows.Close()
	var out []symbol.CallSite
	for rows.Next() {
		var c symbol.CallSite
		if err := rows.Scan(&c.CallerUSR, &c.CalleeUSR, &c.CalleeName, &c.File, &c.Line, &c.Column); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) GetCallSitesByCaller(ctx context.Context, callerUSR string) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT caller_usr, callee_usr, callee_name, file, line, column FROM call_sites WHERE caller_usr = ?`, callerUSR)
	if err != nil {
		return nil, err
	}
	return scanCallSites(rows)
}

func (b *SQLiteBackend) GetCallSitesByCallee(ctx context.Context, callee string) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT caller_usr, callee_usr, callee_name, file, line, column FROM call_sites WHERE callee_usr = ? OR callee_name = ?`, callee, callee)
	if err != nil {
		return nil, err
	}
	return scanCallSites(rows)
}

func (b *SQLiteBackend) ListCallSites(ctx context.Context) ([]symbol.CallSite, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT caller_usr, callee_usr, callee_name, file, line, column FROM call_sites`)
	if err != nil {
		return nil, err
	}
	return scanCallSites(rows)
}

// --- type aliases ---

func (b *SQLiteBackend) SaveTypeAliases(ctx context.Context, file string, aliases []symbol.TypeAlias) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return withBusyRetry(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, "DELETE FROM type_aliases WHERE file = ?", file); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO type_aliases (alias_name, alias_qualified_name, canonical_type, file, line) VALUES (?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, a := range aliases {
			if _, err := stmt.ExecContext(ctx, a.AliasName, a.AliasQualifiedName, a.CanonicalType, a.File, a.Line); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (b *SQLiteBackend) GetTypeAliases(ctx context.Context, name string) ([]symbol.TypeAlias, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `
		SELECT alias_name, alias_qualified_name, canonical_type, file, line FROM type_aliases
		WHERE alias_name = ? OR alias_qualified_name = ? OR canonical_type = ?`, name, name, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []symbol.TypeAlias
	for rows.Next() {
		var a symbol.TypeAlias
		if err := rows.Scan(&a.AliasName, &a.AliasQualifiedName, &a.CanonicalType, &a.File, &a.Line); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- file dependencies ---

func (b *SQLiteBackend) SaveFileDependencies(ctx context.Context, file string, deps []symbol.FileDependency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return withBusyRetry(ctx, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_dependencies WHERE source_file = ?", file); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO file_dependencies (source_file, included_file, is_direct, include_depth) VALUES (?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, d := range deps {
			if _, err := stmt.ExecContext(ctx, d.SourceFile, d.IncludedFile, boolToInt(d.IsDirect), d.IncludeDepth); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (b *SQLiteBackend) GetDependents(ctx context.Context, includedFile string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, "SELECT DISTINCT source_file FROM file_dependencies WHERE included_file = ?", includedFile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- cache metadata ---

func (b *SQLiteBackend) GetCacheMetadata(ctx context.Context) (*symbol.CacheMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var cm symbol.CacheMetadata
	var inc int
	err := b.db.QueryRowContext(ctx, `
		SELECT include_dependencies, config_path, config_mtime, compile_commands_path, compile_commands_mtime, indexed_file_count
		FROM cache_metadata WHERE id = 1`).
		Scan(&inc, &cm.ConfigPath, &cm.ConfigMTime, &cm.CompileCommandsPath, &cm.CompileCommandsMTime, &cm.IndexedFileCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cm.IncludeDependencies = inc != 0
	return &cm, nil
}

func (b *SQLiteBackend) SetCacheMetadata(ctx context.Context, cm symbol.CacheMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO cache_metadata (id, include_dependencies, config_path, config_mtime, compile_commands_path, compile_commands_mtime, indexed_file_count)
		VALUES (1,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			include_dependencies=excluded.include_dependencies, config_path=excluded.config_path,
			config_mtime=excluded.config_mtime, compile_commands_path=excluded.compile_commands_path,
			compile_commands_mtime=excluded.compile_commands_mtime, indexed_file_count=excluded.indexed_file_count
	`, boolToInt(cm.IncludeDependencies), cm.ConfigPath, cm.ConfigMTime, cm.CompileCommandsPath, cm.CompileCommandsMTime, cm.IndexedFileCount)
	return err
}

// --- maintenance ---

func (b *SQLiteBackend) Vacuum(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, "VACUUM;")
	return err
}

func (b *SQLiteBackend) Analyze(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, "ANALYZE;")
	return err
}

func (b *SQLiteBackend) Optimize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.db.ExecContext(ctx, `INSERT INTO symbols_fts(symbols_fts) VALUES('optimize');`)
	return err
}

func (b *SQLiteBackend) CheckIntegrity(ctx context.Context, full bool) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pragma := "quick_check"
	if full {
		pragma = "integrity_check"
	}
	var result string
	err := b.db.QueryRowContext(ctx, "PRAGMA "+pragma+";").Scan(&result)
	if err != nil {
		return false, err
	}
	return result == "ok", nil
}

func (b *SQLiteBackend) GetHealthStatus(ctx context.Context) (*HealthStatus, error) {
	ok, err := b.CheckIntegrity(ctx, false)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	hs := &HealthStatus{IntegrityOK: ok, TableSizes: map[string]int64{}}
	if !ok {
		hs.Errors = append(hs.Errors, "integrity check failed")
	}

	_ = b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&hs.SymbolCount)
	_ = b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols_fts").Scan(&hs.FTSCount)
	hs.FTSCountMatches = hs.FTSCount == hs.SymbolCount
	if !hs.FTSCountMatches {
		hs.Warnings = append(hs.Warnings, "fts row count does not match symbols row count")
	}

	_ = b.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&hs.JournalMode)

	for _, tbl := range []string{"symbols", "file_metadata", "call_sites", "type_aliases", "file_dependencies"} {
		var n int64
		if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tbl).Scan(&n); err == nil {
			hs.TableSizes[tbl] = n
		}
	}

	var pageCount, pageSize int64
	_ = b.db.QueryRowContext(ctx, "PRAGMA page_count;").Scan(&pageCount)
	_ = b.db.QueryRowContext(ctx, "PRAGMA page_size;").Scan(&pageSize)
	hs.SizeBytes = pageCount * pageSize

	return hs, nil
}

func (b *SQLiteBackend) SchemaVersion(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var v int
	err := b.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

// DB exposes the underlying handle for pkg/storage/migrate, mirroring
// embedded.go's DB() accessor.
func (b *SQLiteBackend) DB() *sql.DB {
	return b.db
}

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

// Package symbol defines the persistent data model shared by every storage
// backend and the query engine: symbols, per-file metadata, call-site
// edges, type aliases, file dependencies, and the cache/schema bookkeeping
// rows that let a backend validate or invalidate itself.
package symbol

// Kind enumerates the C++ declaration/definition kinds the parser trait
// can report. Kept as plain strings (not an iota) because the external
// parser and the document backend both serialize kind as text.
type Kind string

const (
	KindClass                 Kind = "class"
	KindStruct                Kind = "struct"
	KindUnion                 Kind = "union"
	KindEnum                  Kind = "enum"
	KindClassTemplate         Kind = "class_template"
	KindPartialSpecialization Kind = "partial_specialization"
	KindFunction              Kind = "function"
	KindMethod                Kind = "method"
	KindConstructor           Kind = "constructor"
	KindDestructor            Kind = "destructor"
	KindFunctionTemplate      Kind = "function_template"
	KindTypeAlias             Kind = "type_alias"
)

// Access is the C++ member-access specifier.
type Access string

const (
	AccessPublic    Access = "public"
	AccessPrivate   Access = "private"
	AccessProtected Access = "protected"
)

// TemplateParameter is one entry of a template's parameter list, e.g.
// {Name: "T", Kind: "typename"}.
type TemplateParameter struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Symbol is one declaration or definition, keyed by its USR. See spec §3.1.
type Symbol struct {
	USR           string `json:"usr"`
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Namespace     string `json:"namespace"`
	Kind          Kind   `json:"kind"`

	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`

	HeaderFile      string `json:"header_file,omitempty"`
	HeaderLine      int    `json:"header_line,omitempty"`
	HeaderStartLine int    `json:"header_start_line,omitempty"`
	HeaderEndLine   int    `json:"header_end_line,omitempty"`

	Signature    string `json:"signature"`
	Access       Access `json:"access,omitempty"`
	ParentClass  string `json:"parent_class,omitempty"`
	BaseClasses  []string `json:"base_classes,omitempty"`

	IsProject     bool `json:"is_project"`
	IsDefinition  bool `json:"is_definition"`
	IsVirtual     bool `json:"is_virtual"`
	IsPureVirtual bool `json:"is_pure_virtual"`
	IsConst       bool `json:"is_const"`
	IsStatic      bool `json:"is_static"`

	TemplateKind       string              `json:"template_kind,omitempty"`
	TemplateParameters []TemplateParameter `json:"template_parameters,omitempty"`
	PrimaryTemplateUSR string              `json:"primary_template_usr,omitempty"`

	Brief      string `json:"brief,omitempty"`
	DocComment string `json:"doc_comment,omitempty"`
}

// Span returns end_line - start_line, used by the richer-definition rule.
func (s Symbol) Span() int {
	return s.EndLine - s.StartLine
}

// FileMetadata is the per-file indexing receipt. See spec §3.1.
type FileMetadata struct {
	FilePath        string `json:"file_path"`
	FileHash        string `json:"file_hash"`
	CompileArgsHash string `json:"compile_args_hash"`
	IndexedAt       int64  `json:"indexed_at"`
	SymbolCount     int    `json:"symbol_count"`

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
}

// CallSite is a directed edge from a caller's definition to a callee,
// carrying the call's source coordinates.
type CallSite struct {
	CallerUSR string `json:"caller_usr"`
	CalleeUSR string `json:"callee_usr,omitempty"`
	// CalleeName is populated when the parser could not resolve a USR for
	// the callee (e.g. call through an unresolved template or macro).
	CalleeName string `json:"callee_name,omitempty"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// TypeAlias maps a using/typedef name to its canonical type.
type TypeAlias struct {
	AliasName          string `json:"alias_name"`
	AliasQualifiedName string `json:"alias_qualified_name"`
	CanonicalType      string `json:"canonical_type"`
	File               string `json:"file"`
	Line               int    `json:"line"`
}

// FileDependency records an #include edge, used to fan incremental
// reindexing out to transitive consumers of a changed header.
type FileDependency struct {
	SourceFile    string `json:"source_file"`
	IncludedFile  string `json:"included_file"`
	IsDirect      bool   `json:"is_direct"`
	IncludeDepth  int    `json:"include_depth"`
}

// CacheMetadata is the single-row global key/value record a backend uses
// to validate (or reject) a warm load. See spec §4.4 "Warm path".
type CacheMetadata struct {
	IncludeDependencies   bool   `json:"include_dependencies"`
	ConfigPath            string `json:"config_path"`
	ConfigMTime           int64  `json:"config_mtime"`
	CompileCommandsPath   string `json:"compile_commands_path"`
	CompileCommandsMTime  int64  `json:"compile_commands_mtime"`
	IndexedFileCount      int    `json:"indexed_file_count"`
}

// Matches reports whether other agrees with c on every field that gates a
// warm load, per spec invariant 6: any difference in these fields rejects
// a warm load. IndexedFileCount is not compared.
func (c CacheMetadata) Matches(other CacheMetadata) bool {
	return c.IncludeDependencies == other.IncludeDependencies &&
		c.ConfigPath == other.ConfigPath &&
		c.ConfigMTime == other.ConfigMTime &&
		c.CompileCommandsPath == other.CompileCommandsPath &&
		c.CompileCommandsMTime == other.CompileCommandsMTime
}

// SchemaVersion gates migrations; see pkg/storage/migrate.
type SchemaVersion struct {
	Version     int    `json:"version"`
	AppliedAt   int64  `json:"applied_at"`
	Description string `json:"description"`
}

// ProjectIdentity is the derived (source_directory, config_file_path) pair
// that names a cache directory. Its Hash is computed by pkg/identity; it
// lives here because every other entity in this package is scoped to one
// identity and the storage layer needs the type to build cache paths.
type ProjectIdentity struct {
	SourceDirectory string `json:"source_directory"`
	ConfigFilePath  string `json:"config_file_path,omitempty"`
	Hash            string `json:"hash"`
}

// IsRicherDefinition implements the dedup rule of spec §4.4/§3.2/§8.
//
// It is anti-symmetric and stable: IsRicherDefinition(a, b) == true implies
// IsRicherDefinition(b, a) == false, and when neither is richer than the
// other, the existing row (b) is kept.
func IsRicherDefinition(candidate, existing Symbol) bool {
	candidateHasBases := len(candidate.BaseClasses) > 0
	existingHasBases := len(existing.BaseClasses) > 0

	if candidateHasBases != existingHasBases {
		return candidateHasBases
	}

	candidateSpan := candidate.Span()
	existingSpan := existing.Span()
	if candidateSpan != existingSpan {
		return candidateSpan > existingSpan
	}

	return false
}

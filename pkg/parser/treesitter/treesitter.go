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

// Package treesitter is a best-effort, built-in implementation of
// parser.SymbolSource for C++, used as the default when no libclang-backed
// adapter is configured. It intentionally does not attempt semantic
// analysis (template instantiation, overload resolution, macro expansion)
// — it walks the Tree-sitter C++ grammar's syntax tree and reports what is
// syntactically visible. A production deployment swaps this out for a real
// libclang trait implementation; this one exists so the rest of the core
// is runnable and testable without one.
package treesitter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/andreymedv/cppindex/pkg/parser"
	"github.com/andreymedv/cppindex/pkg/symbol"
)

// Source parses C++ translation units with Tree-sitter. Zero value is not
// usable; construct with New.
type Source struct {
	logger *slog.Logger

	pool       sync.Pool
	initOnce   sync.Once

	mu             sync.Mutex
	truncatedCount int
	maxCodeSize    int64
}

// New creates a Tree-sitter based C++ symbol source.
func New(logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{logger: logger, maxCodeSize: 102400}
}

func (s *Source) init() {
	s.initOnce.Do(func() {
		s.pool.New = func() any {
			p := sitter.NewParser()
			p.SetLanguage(cpp.GetLanguage())
			return p
		}
	})
}

// ParseFile implements parser.SymbolSource.
func (s *Source) ParseFile(ctx context.Context, file parser.FileInfo) (*parser.Result, error) {
	s.init()

	content, err := os.ReadFile(file.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	hash := sha256.Sum256(content)

	obj := s.pool.Get()
	p, ok := obj.(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("tree-sitter parser pool returned unexpected type")
	}
	defer s.pool.Put(p)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse cpp: %w", err)
	}
	defer tree.Close()

	w := &walker{
		source:  content,
		path:    file.Path,
		nsStack: nil,
	}
	w.walk(tree.RootNode())

	return &parser.Result{
		File: symbol.FileMetadata{
			FilePath: file.Path,
			FileHash: hex.EncodeToString(hash[:]),
			Success:  true,
		},
		Symbols:     w.symbols,
		CallSites:   w.calls,
		TypeAliases: w.aliases,
	}, nil
}

// Close does nothing and returns nil; pooled parsers are left to the
// garbage collector. SymbolSource callers are not required to call it.
func (s *Source) Close() error {
	return nil
}

type walker struct {
	source  []byte
	path    string
	nsStack []string

	symbols []symbol.Symbol
	calls   []symbol.CallSite
	aliases []symbol.TypeAlias
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(w.source[n.StartByte():n.EndByte()])
}

func (w *walker) qualify(name string) string {
	if len(w.nsStack) == 0 {
		return name
	}
	return strings.Join(w.nsStack, "::") + "::" + name
}

func usrFor(path, qualifiedName string, startLine int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", path, qualifiedName, startLine)))
	return "usr:" + hex.EncodeToString(h[:])[:24]
}

func (w *walker) walk(n *sitter.Node) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "namespace_definition":
		name := w.text(n.ChildByFieldName("name"))
		w.nsStack = append(w.nsStack, name)
		for i := 0; i < int(n.ChildCount()); i++ {
			w.walk(n.Child(i))
		}
		w.nsStack = w.nsStack[:len(w.nsStack)-1]
		return

	case "class_specifier", "struct_specifier":
		w.recordRecord(n)

	case "function_definition":
		w.recordFunction(n)

	case "alias_declaration":
		w.recordAlias(n)

	case "call_expression":
		w.recordCall(n)
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		w.walk(n.Child(i))
	}
}

func (w *walker) recordRecord(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	qualified := w.qualify(name)

	kind := symbol.KindClass
	if n.Type() == "struct_specifier" {
		kind = symbol.KindStruct
	}

	var bases []string
	if baseClause := n.ChildByFieldName("base_class_clause"); baseClause != nil {
		for i := 0; i < int(baseClause.ChildCount()); i++ {
			c := baseClause.Child(i)
			if c.Type() == "type_identifier" || c.Type() == "qualified_identifier" {
				bases = append(bases, w.text(c))
			}
		}
	}

	isDefinition := n.ChildByFieldName("body") != nil
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1

	sym := symbol.Symbol{
		USR:           usrFor(w.path, qualified, start),
		Name:          name,
		QualifiedName: qualified,
		Namespace:     strings.Join(w.nsStack, "::"),
		Kind:          kind,
		File:          w.path,
		Line:          start,
		StartLine:     start,
		EndLine:       end,
		IsProject:     true,
		IsDefinition:  isDefinition,
		BaseClasses:   bases,
	}
	w.symbols = append(w.symbols, sym)

	if isDefinition {
		if body := n.ChildByFieldName("body"); body != nil {
			prevStack := w.nsStack
			w.nsStack = append(append([]string{}, w.nsStack...), name)
			for i := 0; i < int(body.ChildCount()); i++ {
				w.walkMember(body.Child(i), qualified)
			}
			w.nsStack = prevStack
		}
	}
}

func (w *walker) walkMember(n *sitter.Node, parentClass string) {
	if n == nil {
		return
	}
	if n.Type() == "function_definition" || n.Type() == "field_declaration" {
		declarator := n.ChildByFieldName("declarator")
		fnDeclarator := findFunctionDeclarator(declarator)
		if fnDeclarator != nil {
			nameNode := fnDeclarator.ChildByFieldName("declarator")
			name := w.text(nameNode)
			if name == "" {
				return
			}
			qualified := w.qualify(name)
			start := int(n.StartPoint().Row) + 1
			end := int(n.EndPoint().Row) + 1
			isVirtual := strings.Contains(w.text(n), "virtual")
			isPure := strings.Contains(w.text(n), "= 0")
			kind := symbol.KindMethod
			if name == parentClass {
				kind = symbol.KindConstructor
			} else if strings.HasPrefix(name, "~") {
				kind = symbol.KindDestructor
			}
			w.symbols = append(w.symbols, symbol.Symbol{
				USR:           usrFor(w.path, qualified, start),
				Name:          name,
				QualifiedName: qualified,
				Namespace:     strings.Join(w.nsStack[:len(w.nsStack)-1], "::"),
				Kind:          kind,
				File:          w.path,
				Line:          start,
				StartLine:     start,
				EndLine:       end,
				ParentClass:   parentClass,
				IsProject:     true,
				IsDefinition:  n.Type() == "function_definition",
				IsVirtual:     isVirtual,
				IsPureVirtual: isPure,
				Signature:     strings.TrimSpace(w.text(n.ChildByFieldName("declarator"))),
			})
			return
		}
	}
	// Recurse for nested records.
	if n.Type() == "class_specifier" || n.Type() == "struct_specifier" {
		w.recordRecord(n)
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		w.walkMember(n.Child(i), parentClass)
	}
}

func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		if n.Type() == "function_declarator" {
			return n
		}
		n = n.ChildByFieldName("declarator")
	}
	return nil
}

func (w *walker) recordFunction(n *sitter.Node) {
	// Top-level (non-member) functions. Member functions are handled via
	// walkMember when encountered inside a class body; here we only
	// record when not already inside one (best-effort: duplicates inside
	// a class body are avoided because recordRecord walks bodies itself
	// and the outer walk does not descend into bodies a second time for
	// function_definition nodes whose parent is a field_declaration_list).
	parent := n.Parent()
	if parent != nil && parent.Type() == "field_declaration_list" {
		return
	}

	declarator := n.ChildByFieldName("declarator")
	fnDeclarator := findFunctionDeclarator(declarator)
	if fnDeclarator == nil {
		return
	}
	nameNode := fnDeclarator.ChildByFieldName("declarator")
	name := w.text(nameNode)
	if name == "" {
		return
	}
	qualified := w.qualify(name)
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1

	w.symbols = append(w.symbols, symbol.Symbol{
		USR:           usrFor(w.path, qualified, start),
		Name:          name,
		QualifiedName: qualified,
		Namespace:     strings.Join(w.nsStack, "::"),
		Kind:          symbol.KindFunction,
		File:          w.path,
		Line:          start,
		StartLine:     start,
		EndLine:       end,
		IsProject:     true,
		IsDefinition:  true,
		Signature:     strings.TrimSpace(w.text(declarator)),
	})

	caller := usrFor(w.path, qualified, start)
	if body := n.ChildByFieldName("body"); body != nil {
		w.collectCalls(body, caller)
	}
}

func (w *walker) collectCalls(n *sitter.Node, callerUSR string) {
	if n == nil {
		return
	}
	if n.Type() == "call_expression" {
		fn := n.ChildByFieldName("function")
		name := w.text(fn)
		if idx := strings.LastIndex(name, "::"); idx >= 0 {
			name = name[idx+2:]
		}
		if name != "" {
			w.calls = append(w.calls, symbol.CallSite{
				CallerUSR:  callerUSR,
				CalleeName: name,
				File:       w.path,
				Line:       int(n.StartPoint().Row) + 1,
				Column:     int(n.StartPoint().Column) + 1,
			})
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		w.collectCalls(n.Child(i), callerUSR)
	}
}

func (w *walker) recordCall(n *sitter.Node) {
	// Top-level call expressions outside any recorded function body are
	// ignored (best-effort parser, no file-scope statement execution in
	// C++ to record calls against anyway).
}

func (w *walker) recordAlias(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	valueNode := n.ChildByFieldName("type")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	w.aliases = append(w.aliases, symbol.TypeAlias{
		AliasName:          name,
		AliasQualifiedName: w.qualify(name),
		CanonicalType:      w.text(valueNode),
		File:               w.path,
		Line:               int(n.StartPoint().Row) + 1,
	})
}

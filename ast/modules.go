package ast

import (
	"strings"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// ImportSpec binds one imported name to a local identifier. Imported is
// "default" for default imports and "*" for namespace imports.
type ImportSpec struct {
	Imported string
	Local    *Ident
}

func (s *ImportSpec) String() string {
	switch s.Imported {
	case "*":
		return "* as " + s.Local.Name
	case s.Local.Name:
		return s.Local.Name
	}
	return s.Imported + " as " + s.Local.Name
}

// Import is an import declaration. A side-effect import has no specifiers.
type Import struct {
	ImportPos token.Position
	Specs     []*ImportSpec
	Source    *String
}

func (s *Import) stmtNode() {}

func (s *Import) Pos() token.Position { return s.ImportPos }
func (s *Import) End() token.Position { return s.Source.End() }

func (s *Import) String() string {
	if len(s.Specs) == 0 {
		return "import " + s.Source.String()
	}
	parts := make([]string, 0, len(s.Specs))
	for _, spec := range s.Specs {
		parts = append(parts, spec.String())
	}
	return "import {" + strings.Join(parts, ", ") + "} from " + s.Source.String()
}

// ExportSpec is a single "local as exported" pair in an export list.
type ExportSpec struct {
	Local    *Ident
	Exported string
}

func (s *ExportSpec) String() string {
	if s.Local.Name == s.Exported {
		return s.Exported
	}
	return s.Local.Name + " as " + s.Exported
}

// ExportNamed is "export { a, b as c }" or "export { a } from 'mod'".
type ExportNamed struct {
	ExportPos token.Position
	Specs     []*ExportSpec
	Source    *String // nil for local exports
	Rbrace    token.Position
}

func (s *ExportNamed) stmtNode() {}

func (s *ExportNamed) Pos() token.Position { return s.ExportPos }
func (s *ExportNamed) End() token.Position {
	if s.Source != nil {
		return s.Source.End()
	}
	return s.Rbrace.Advance(1)
}

func (s *ExportNamed) String() string {
	parts := make([]string, 0, len(s.Specs))
	for _, spec := range s.Specs {
		parts = append(parts, spec.String())
	}
	out := "export {" + strings.Join(parts, ", ") + "}"
	if s.Source != nil {
		out += " from " + s.Source.String()
	}
	return out
}

// ExportDecl exports the bindings introduced by a declaration.
type ExportDecl struct {
	ExportPos token.Position
	Decl      Stmt // *VarDecl or *FuncDecl
}

func (s *ExportDecl) stmtNode() {}

func (s *ExportDecl) Pos() token.Position { return s.ExportPos }
func (s *ExportDecl) End() token.Position { return s.Decl.End() }
func (s *ExportDecl) String() string      { return "export " + s.Decl.String() }

// ExportDefault is "export default <expr>". When the default export is a
// function declaration, Func holds it and Value is nil.
type ExportDefault struct {
	ExportPos token.Position
	Value     Expr
	Func      *FuncDecl
}

func (s *ExportDefault) stmtNode() {}

func (s *ExportDefault) Pos() token.Position { return s.ExportPos }
func (s *ExportDefault) End() token.Position {
	if s.Func != nil {
		return s.Func.End()
	}
	return s.Value.End()
}

func (s *ExportDefault) String() string {
	if s.Func != nil {
		return "export default " + s.Func.String()
	}
	return "export default " + s.Value.String()
}

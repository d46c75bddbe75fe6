package ast

import (
	"strings"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// Declarator is a single binding within a variable declaration.
type Declarator struct {
	Name  *Ident
	Value Expr // nil when no initializer is given
}

// VarDecl declares one or more bindings with let, const or var.
type VarDecl struct {
	DeclPos token.Position
	Kind    string // "let", "const" or "var"
	Decls   []*Declarator
}

func (s *VarDecl) stmtNode() {}

func (s *VarDecl) Pos() token.Position { return s.DeclPos }
func (s *VarDecl) End() token.Position {
	last := s.Decls[len(s.Decls)-1]
	if last.Value != nil {
		return last.Value.End()
	}
	return last.Name.End()
}

func (s *VarDecl) String() string {
	parts := make([]string, 0, len(s.Decls))
	for _, d := range s.Decls {
		if d.Value != nil {
			parts = append(parts, d.Name.Name+" = "+d.Value.String())
		} else {
			parts = append(parts, d.Name.Name)
		}
	}
	return s.Kind + " " + strings.Join(parts, ", ")
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) stmtNode() {}

func (s *ExprStmt) Pos() token.Position { return s.X.Pos() }
func (s *ExprStmt) End() token.Position { return s.X.End() }
func (s *ExprStmt) String() string      { return s.X.String() }

// Empty is a lone semicolon.
type Empty struct {
	Semicolon token.Position
}

func (s *Empty) stmtNode() {}

func (s *Empty) Pos() token.Position { return s.Semicolon }
func (s *Empty) End() token.Position { return s.Semicolon.Advance(1) }
func (s *Empty) String() string      { return ";" }

// Block is a braced list of statements with its own lexical scope.
type Block struct {
	Lbrace token.Position
	Stmts  []Stmt
	Rbrace token.Position
}

func (s *Block) stmtNode() {}

func (s *Block) Pos() token.Position { return s.Lbrace }
func (s *Block) End() token.Position { return s.Rbrace.Advance(1) }

func (s *Block) String() string {
	var out strings.Builder
	out.WriteString("{")
	for _, stmt := range s.Stmts {
		out.WriteString(" ")
		out.WriteString(stmt.String())
		out.WriteString(";")
	}
	out.WriteString(" }")
	return out.String()
}

// FuncDecl is a hoisted function declaration statement.
type FuncDecl struct {
	Func *Func
}

func (s *FuncDecl) stmtNode() {}

func (s *FuncDecl) Pos() token.Position { return s.Func.Pos() }
func (s *FuncDecl) End() token.Position { return s.Func.End() }
func (s *FuncDecl) String() string      { return s.Func.String() }

// If is a conditional statement.
type If struct {
	IfPos       token.Position
	Cond        Expr
	Consequence Stmt
	Alternative Stmt // nil when there is no else branch
}

func (s *If) stmtNode() {}

func (s *If) Pos() token.Position { return s.IfPos }
func (s *If) End() token.Position {
	if s.Alternative != nil {
		return s.Alternative.End()
	}
	return s.Consequence.End()
}

func (s *If) String() string {
	out := "if (" + s.Cond.String() + ") " + s.Consequence.String()
	if s.Alternative != nil {
		out += " else " + s.Alternative.String()
	}
	return out
}

// While is a "while (cond) body" loop.
type While struct {
	WhilePos token.Position
	Cond     Expr
	Body     Stmt
}

func (s *While) stmtNode() {}

func (s *While) Pos() token.Position { return s.WhilePos }
func (s *While) End() token.Position { return s.Body.End() }
func (s *While) String() string      { return "while (" + s.Cond.String() + ") " + s.Body.String() }

// DoWhile is a "do body while (cond)" loop.
type DoWhile struct {
	DoPos  token.Position
	Body   Stmt
	Cond   Expr
	Rparen token.Position
}

func (s *DoWhile) stmtNode() {}

func (s *DoWhile) Pos() token.Position { return s.DoPos }
func (s *DoWhile) End() token.Position { return s.Rparen.Advance(1) }
func (s *DoWhile) String() string {
	return "do " + s.Body.String() + " while (" + s.Cond.String() + ")"
}

// For is a C-style "for (init; cond; post) body" loop.
type For struct {
	ForPos token.Position
	Init   Stmt // *VarDecl, *ExprStmt or nil
	Cond   Expr // nil means loop forever
	Post   Expr // may be nil
	Body   Stmt
}

func (s *For) stmtNode() {}

func (s *For) Pos() token.Position { return s.ForPos }
func (s *For) End() token.Position { return s.Body.End() }

func (s *For) String() string {
	str := func(n Node) string {
		if n == nil {
			return ""
		}
		return n.String()
	}
	var init, cond, post string
	if s.Init != nil {
		init = s.Init.String()
	}
	if s.Cond != nil {
		cond = str(s.Cond)
	}
	if s.Post != nil {
		post = str(s.Post)
	}
	return "for (" + init + "; " + cond + "; " + post + ") " + s.Body.String()
}

// ForEach is a "for (x of iterable)" or "for (key in object)" loop.
type ForEach struct {
	ForPos token.Position
	Kind   string // "let", "const", "var" or "" to assign an existing binding
	Name   *Ident
	Of     bool // true for for-of, false for for-in
	Iter   Expr
	Body   Stmt
}

func (s *ForEach) stmtNode() {}

func (s *ForEach) Pos() token.Position { return s.ForPos }
func (s *ForEach) End() token.Position { return s.Body.End() }

func (s *ForEach) String() string {
	kw := "in"
	if s.Of {
		kw = "of"
	}
	decl := s.Name.Name
	if s.Kind != "" {
		decl = s.Kind + " " + decl
	}
	return "for (" + decl + " " + kw + " " + s.Iter.String() + ") " + s.Body.String()
}

// Break exits the innermost loop or switch.
type Break struct {
	BreakPos token.Position
}

func (s *Break) stmtNode() {}

func (s *Break) Pos() token.Position { return s.BreakPos }
func (s *Break) End() token.Position { return s.BreakPos.Advance(5) }
func (s *Break) String() string      { return "break" }

// Continue skips to the next iteration of the innermost loop.
type Continue struct {
	ContinuePos token.Position
}

func (s *Continue) stmtNode() {}

func (s *Continue) Pos() token.Position { return s.ContinuePos }
func (s *Continue) End() token.Position { return s.ContinuePos.Advance(8) }
func (s *Continue) String() string      { return "continue" }

// Return exits the current function.
type Return struct {
	ReturnPos token.Position
	Value     Expr // nil for a bare return
}

func (s *Return) stmtNode() {}

func (s *Return) Pos() token.Position { return s.ReturnPos }
func (s *Return) End() token.Position {
	if s.Value != nil {
		return s.Value.End()
	}
	return s.ReturnPos.Advance(6)
}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}

// Throw raises an exception.
type Throw struct {
	ThrowPos token.Position
	Value    Expr
}

func (s *Throw) stmtNode() {}

func (s *Throw) Pos() token.Position { return s.ThrowPos }
func (s *Throw) End() token.Position { return s.Value.End() }
func (s *Throw) String() string      { return "throw " + s.Value.String() }

// Try is a try/catch/finally statement. At least one of Catch or Finally
// is non-nil.
type Try struct {
	TryPos     token.Position
	Body       *Block
	CatchParam *Ident // nil for "catch {" or when there is no catch clause
	Catch      *Block
	Finally    *Block
}

func (s *Try) stmtNode() {}

func (s *Try) Pos() token.Position { return s.TryPos }
func (s *Try) End() token.Position {
	if s.Finally != nil {
		return s.Finally.End()
	}
	return s.Catch.End()
}

func (s *Try) String() string {
	out := "try " + s.Body.String()
	if s.Catch != nil {
		out += " catch "
		if s.CatchParam != nil {
			out += "(" + s.CatchParam.Name + ") "
		}
		out += s.Catch.String()
	}
	if s.Finally != nil {
		out += " finally " + s.Finally.String()
	}
	return out
}

// Case is a single clause of a switch statement.
type Case struct {
	CasePos token.Position
	Value   Expr // nil for the default clause
	Body    []Stmt
}

// Switch is a switch statement using strict equality for case matching.
type Switch struct {
	SwitchPos token.Position
	Value     Expr
	Cases     []*Case
	Rbrace    token.Position
}

func (s *Switch) stmtNode() {}

func (s *Switch) Pos() token.Position { return s.SwitchPos }
func (s *Switch) End() token.Position { return s.Rbrace.Advance(1) }

func (s *Switch) String() string {
	var out strings.Builder
	out.WriteString("switch (" + s.Value.String() + ") {")
	for _, c := range s.Cases {
		if c.Value == nil {
			out.WriteString(" default:")
		} else {
			out.WriteString(" case " + c.Value.String() + ":")
		}
		for _, stmt := range c.Body {
			out.WriteString(" " + stmt.String() + ";")
		}
	}
	out.WriteString(" }")
	return out.String()
}

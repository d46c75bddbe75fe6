package ast

import (
	"strings"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// Ident is an expression node that refers to a variable by name.
type Ident struct {
	NamePos token.Position // identifier position
	Name    string         // identifier name
}

func (x *Ident) exprNode() {}

func (x *Ident) Pos() token.Position { return x.NamePos }
func (x *Ident) End() token.Position { return x.NamePos.Advance(len(x.Name)) }

func (x *Ident) String() string { return x.Name }

// Prefix is a unary operator expression like "!x", "-x" or "typeof x".
type Prefix struct {
	OpPos token.Position
	Op    string
	X     Expr
}

func (x *Prefix) exprNode() {}

func (x *Prefix) Pos() token.Position { return x.OpPos }
func (x *Prefix) End() token.Position { return x.X.End() }

func (x *Prefix) String() string {
	switch x.Op {
	case "typeof", "void", "delete":
		return "(" + x.Op + " " + x.X.String() + ")"
	}
	return "(" + x.Op + x.X.String() + ")"
}

// Update is an increment or decrement expression, in prefix or postfix form.
type Update struct {
	OpPos  token.Position
	Op     string // "++" or "--"
	Prefix bool
	X      Expr // *Ident, *Member or *Index
}

func (x *Update) exprNode() {}

func (x *Update) Pos() token.Position {
	if x.Prefix {
		return x.OpPos
	}
	return x.X.Pos()
}

func (x *Update) End() token.Position {
	if x.Prefix {
		return x.X.End()
	}
	return x.OpPos.Advance(2)
}

func (x *Update) String() string {
	if x.Prefix {
		return "(" + x.Op + x.X.String() + ")"
	}
	return "(" + x.X.String() + x.Op + ")"
}

// Infix is a binary operator expression like "a + b" or "a instanceof B".
type Infix struct {
	X     Expr
	OpPos token.Position
	Op    string
	Y     Expr
}

func (x *Infix) exprNode() {}

func (x *Infix) Pos() token.Position { return x.X.Pos() }
func (x *Infix) End() token.Position { return x.Y.End() }

func (x *Infix) String() string {
	return "(" + x.X.String() + " " + x.Op + " " + x.Y.String() + ")"
}

// Logical is a short-circuiting expression: "&&", "||" or "??".
type Logical struct {
	X     Expr
	OpPos token.Position
	Op    string
	Y     Expr
}

func (x *Logical) exprNode() {}

func (x *Logical) Pos() token.Position { return x.X.Pos() }
func (x *Logical) End() token.Position { return x.Y.End() }

func (x *Logical) String() string {
	return "(" + x.X.String() + " " + x.Op + " " + x.Y.String() + ")"
}

// Assign is an assignment expression. Op is "=" or a compound operator
// such as "+=" or "??=".
type Assign struct {
	Target Expr // *Ident, *Member or *Index
	OpPos  token.Position
	Op     string
	Value  Expr
}

func (x *Assign) exprNode() {}

func (x *Assign) Pos() token.Position { return x.Target.Pos() }
func (x *Assign) End() token.Position { return x.Value.End() }

func (x *Assign) String() string {
	return x.Target.String() + " " + x.Op + " " + x.Value.String()
}

// Ternary is a conditional expression "cond ? a : b".
type Ternary struct {
	Cond     Expr
	Question token.Position
	IfTrue   Expr
	IfFalse  Expr
}

func (x *Ternary) exprNode() {}

func (x *Ternary) Pos() token.Position { return x.Cond.Pos() }
func (x *Ternary) End() token.Position { return x.IfFalse.End() }

func (x *Ternary) String() string {
	return "(" + x.Cond.String() + " ? " + x.IfTrue.String() + " : " + x.IfFalse.String() + ")"
}

// Call is an expression node that describes the invocation of a function.
type Call struct {
	Fun      Expr
	Lparen   token.Position
	Args     []Expr // may include *Spread
	Rparen   token.Position
	Optional bool // f?.()
}

func (x *Call) exprNode() {}

func (x *Call) Pos() token.Position { return x.Fun.Pos() }
func (x *Call) End() token.Position { return x.Rparen.Advance(1) }

func (x *Call) String() string {
	sep := ""
	if x.Optional {
		sep = "?."
	}
	return x.Fun.String() + sep + "(" + joinExprs(x.Args) + ")"
}

// New is a constructor call "new F(args)".
type New struct {
	NewPos token.Position
	Callee Expr
	Args   []Expr
	EndPos token.Position
}

func (x *New) exprNode() {}

func (x *New) Pos() token.Position { return x.NewPos }
func (x *New) End() token.Position { return x.EndPos }

func (x *New) String() string {
	return "new " + x.Callee.String() + "(" + joinExprs(x.Args) + ")"
}

// Member is a property access with a static name: "x.name" or "x?.name".
type Member struct {
	X        Expr
	Period   token.Position
	Name     *Ident
	Optional bool
}

func (x *Member) exprNode() {}

func (x *Member) Pos() token.Position { return x.X.Pos() }
func (x *Member) End() token.Position { return x.Name.End() }

func (x *Member) String() string {
	if x.Optional {
		return x.X.String() + "?." + x.Name.Name
	}
	return x.X.String() + "." + x.Name.Name
}

// Index is a computed property access: "x[expr]" or "x?.[expr]".
type Index struct {
	X        Expr
	Lbrack   token.Position
	Index    Expr
	Rbrack   token.Position
	Optional bool
}

func (x *Index) exprNode() {}

func (x *Index) Pos() token.Position { return x.X.Pos() }
func (x *Index) End() token.Position { return x.Rbrack.Advance(1) }

func (x *Index) String() string {
	if x.Optional {
		return x.X.String() + "?.[" + x.Index.String() + "]"
	}
	return x.X.String() + "[" + x.Index.String() + "]"
}

// Spread is "...x" inside array literals and call arguments.
type Spread struct {
	Ellipsis token.Position
	X        Expr
}

func (x *Spread) exprNode() {}

func (x *Spread) Pos() token.Position { return x.Ellipsis }
func (x *Spread) End() token.Position { return x.X.End() }

func (x *Spread) String() string { return "..." + x.X.String() }

// Sequence is a comma-separated list of expressions evaluated left to right.
type Sequence struct {
	Exprs []Expr
}

func (x *Sequence) exprNode() {}

func (x *Sequence) Pos() token.Position { return x.Exprs[0].Pos() }
func (x *Sequence) End() token.Position { return x.Exprs[len(x.Exprs)-1].End() }

func (x *Sequence) String() string { return "(" + joinExprs(x.Exprs) + ")" }

func joinExprs(exprs []Expr) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}

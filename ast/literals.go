package ast

import (
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// Number is an expression node that holds a numeric literal.
type Number struct {
	ValuePos token.Position // position of the literal
	Literal  string         // the literal text (e.g., "42", "0x2a")
	Value    float64        // the parsed value
}

func (x *Number) exprNode() {}

func (x *Number) Pos() token.Position { return x.ValuePos }
func (x *Number) End() token.Position { return x.ValuePos.Advance(len(x.Literal)) }

func (x *Number) String() string { return x.Literal }

// String is an expression node that holds a string literal.
type String struct {
	ValuePos token.Position // position of opening quote
	EndPos   token.Position // position after the closing quote
	Value    string         // the unquoted string value
}

func (x *String) exprNode() {}

func (x *String) Pos() token.Position { return x.ValuePos }
func (x *String) End() token.Position { return x.EndPos }

func (x *String) String() string { return strconv.Quote(x.Value) }

// Bool is an expression node that holds a boolean literal.
type Bool struct {
	ValuePos token.Position // position of "true" or "false"
	Value    bool
}

func (x *Bool) exprNode() {}

func (x *Bool) Pos() token.Position { return x.ValuePos }
func (x *Bool) End() token.Position { return x.ValuePos.Advance(len(x.String())) }

func (x *Bool) String() string { return strconv.FormatBool(x.Value) }

// Null is an expression node for the null literal.
type Null struct {
	NullPos token.Position
}

func (x *Null) exprNode() {}

func (x *Null) Pos() token.Position { return x.NullPos }
func (x *Null) End() token.Position { return x.NullPos.Advance(4) }

func (x *Null) String() string { return "null" }

// Undefined is an expression node for the undefined literal.
type Undefined struct {
	UndefinedPos token.Position
}

func (x *Undefined) exprNode() {}

func (x *Undefined) Pos() token.Position { return x.UndefinedPos }
func (x *Undefined) End() token.Position { return x.UndefinedPos.Advance(9) }

func (x *Undefined) String() string { return "undefined" }

// This is an expression node for the `this` keyword.
type This struct {
	ThisPos token.Position
}

func (x *This) exprNode() {}

func (x *This) Pos() token.Position { return x.ThisPos }
func (x *This) End() token.Position { return x.ThisPos.Advance(4) }

func (x *This) String() string { return "this" }

// Array is an expression node for an array literal.
type Array struct {
	Lbrack token.Position
	Items  []Expr // items may include *Spread
	Rbrack token.Position
}

func (x *Array) exprNode() {}

func (x *Array) Pos() token.Position { return x.Lbrack }
func (x *Array) End() token.Position { return x.Rbrack.Advance(1) }

func (x *Array) String() string {
	items := make([]string, 0, len(x.Items))
	for _, item := range x.Items {
		items = append(items, item.String())
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// Property is a single entry in an object literal.
type Property struct {
	Key      Expr // *String for plain keys, any Expr when Computed
	Value    Expr
	Computed bool
	Spread   bool // {...x}; Key is nil
}

func (p *Property) String() string {
	if p.Spread {
		return "..." + p.Value.String()
	}
	if p.Computed {
		return "[" + p.Key.String() + "]: " + p.Value.String()
	}
	return p.Key.String() + ": " + p.Value.String()
}

// Object is an expression node for an object literal.
type Object struct {
	Lbrace token.Position
	Props  []*Property
	Rbrace token.Position
}

func (x *Object) exprNode() {}

func (x *Object) Pos() token.Position { return x.Lbrace }
func (x *Object) End() token.Position { return x.Rbrace.Advance(1) }

func (x *Object) String() string {
	props := make([]string, 0, len(x.Props))
	for _, p := range x.Props {
		props = append(props, p.String())
	}
	return "{" + strings.Join(props, ", ") + "}"
}

// Param is a single function parameter with an optional default value.
type Param struct {
	Name    *Ident
	Default Expr
	Rest    bool
}

func (p *Param) String() string {
	switch {
	case p.Rest:
		return "..." + p.Name.Name
	case p.Default != nil:
		return p.Name.Name + " = " + p.Default.String()
	}
	return p.Name.Name
}

// Func is an expression node for function expressions, declarations and
// arrow functions.
type Func struct {
	FuncPos token.Position // position of "function" or the first parameter token
	Name    *Ident         // nil for anonymous functions
	Params  []*Param
	Body    *Block
	Arrow   bool
}

func (x *Func) exprNode() {}

func (x *Func) Pos() token.Position { return x.FuncPos }
func (x *Func) End() token.Position { return x.Body.End() }

func (x *Func) String() string {
	params := make([]string, 0, len(x.Params))
	for _, p := range x.Params {
		params = append(params, p.String())
	}
	if x.Arrow {
		return "(" + strings.Join(params, ", ") + ") => " + x.Body.String()
	}
	name := ""
	if x.Name != nil {
		name = " " + x.Name.Name
	}
	return "function" + name + "(" + strings.Join(params, ", ") + ") " + x.Body.String()
}

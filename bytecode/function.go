package bytecode

import (
	"slices"
	"strings"
)

// Function represents a compiled function template.
// It is immutable after creation and contains all the static information
// needed to create closures at runtime. Default parameter values are
// compiled into the function prologue, so the template only records names.
type Function struct {
	id         string
	name       string
	parameters []string
	rest       bool
	arrow      bool
	code       *Code
}

// FunctionParams contains parameters for creating a new Function.
type FunctionParams struct {
	ID         string
	Name       string
	Parameters []string
	// Rest is true when the last parameter collects remaining arguments.
	Rest bool
	// Arrow functions capture `this` from their defining scope.
	Arrow bool
	Code  *Code
}

// NewFunction creates a new immutable Function from the given parameters.
func NewFunction(params FunctionParams) *Function {
	return &Function{
		id:         params.ID,
		name:       params.Name,
		parameters: slices.Clone(params.Parameters),
		rest:       params.Rest,
		arrow:      params.Arrow,
		code:       params.Code,
	}
}

// ID returns the unique identifier for this function.
func (f *Function) ID() string {
	return f.id
}

// Name returns the function name, or empty string for anonymous functions.
func (f *Function) Name() string {
	return f.name
}

// Code returns the compiled bytecode for this function's body.
func (f *Function) Code() *Code {
	return f.code
}

// ParameterCount returns the number of parameters, including a rest parameter.
func (f *Function) ParameterCount() int {
	return len(f.parameters)
}

// Parameter returns the name of the parameter at the given index.
func (f *Function) Parameter(index int) string {
	return f.parameters[index]
}

// HasRestParam returns true if the last parameter is a rest parameter.
func (f *Function) HasRestParam() bool {
	return f.rest
}

// IsArrow returns true for arrow functions.
func (f *Function) IsArrow() bool {
	return f.arrow
}

// Length returns the number of declared parameters before the rest
// parameter, matching the script-visible "length" property.
func (f *Function) Length() int {
	if f.rest {
		return len(f.parameters) - 1
	}
	return len(f.parameters)
}

// String returns a string representation of the function.
func (f *Function) String() string {
	params := make([]string, len(f.parameters))
	copy(params, f.parameters)
	if f.rest && len(params) > 0 {
		params[len(params)-1] = "..." + params[len(params)-1]
	}
	var out strings.Builder
	out.WriteString("function")
	if f.name != "" {
		out.WriteString(" " + f.name)
	}
	out.WriteString("(")
	out.WriteString(strings.Join(params, ", "))
	out.WriteString(") { [bytecode] }")
	return out.String()
}

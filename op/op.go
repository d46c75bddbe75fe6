// Package op defines opcodes used by the jsrt compiler and virtual machine.
package op

// Code is an integer opcode that indicates an operation to execute.
// Operands are stored inline in the instruction stream, one Code each.
type Code uint16

const (
	Invalid Code = 0

	// Execution
	Nop         Code = 1
	Call        Code = 3 // operand: argc. Stack: callee, args...
	ReturnValue Code = 4
	CallMethod  Code = 5 // operand: argc. Stack: receiver, callee, args...
	CallSpread  Code = 7 // operand: 1 if a receiver is present. Stack: [receiver], callee, args array
	New         Code = 8 // operand: argc. Stack: constructor, args...
	NewSpread   Code = 9 // Stack: constructor, args array

	// Jump
	JumpBackward               Code = 10
	JumpForward                Code = 11
	PopJumpForwardIfFalse      Code = 12
	PopJumpForwardIfTrue       Code = 13
	PopJumpForwardIfNotNullish Code = 14
	PopJumpForwardIfNullish    Code = 15

	// Load
	LoadAttr         Code = 20
	LoadFast         Code = 21
	LoadFree         Code = 22
	LoadGlobal       Code = 23
	LoadConst        Code = 24
	LoadGlobalTypeof Code = 25 // Like LoadGlobal but pushes undefined for undeclared names
	LoadModule       Code = 26
	LoadThis         Code = 27
	LoadCallee       Code = 28 // The function running in the current frame
	RenewFast        Code = 29 // Detach a local from captured cells, keeping its value

	// Store
	StoreAttr   Code = 30 // Stack: object, value. Pushes value back.
	StoreFast   Code = 31
	StoreFree   Code = 32
	StoreGlobal Code = 33
	StoreModule Code = 34

	// Declaration and initialization. Init variants bypass the
	// uninitialized-binding check used by the Store variants.
	InitFast      Code = 35
	InitGlobal    Code = 36
	InitModule    Code = 37
	DeclareGlobal Code = 38 // operands: name index, declaration kind
	Uninitialized Code = 39 // Push the uninitialized binding marker

	// Operations
	BinaryOp      Code = 40
	CompareOp     Code = 41
	UnaryNegative Code = 42
	UnaryNot      Code = 43
	UnaryPlus     Code = 44
	UnaryBitNot   Code = 45
	TypeOf        Code = 46
	InstanceOf    Code = 47
	ContainsOp    Code = 48 // key in object

	// Build
	BuildArray   Code = 50
	BuildObject  Code = 51 // operand: number of key/value pairs on the stack
	ArrayAppend  Code = 54 // Append TOS to array at TOS-1
	ArrayExtend  Code = 55 // Extend array at TOS-1 with iterable at TOS
	ObjectSpread Code = 56 // Copy own properties of TOS into object at TOS-1
	ObjectSet    Code = 57 // Set key (TOS-1) to value (TOS) in object at TOS-2

	// Containers
	BinarySubscr Code = 60
	StoreSubscr  Code = 61 // Stack: object, key, value. Pushes value back.
	DeleteAttr   Code = 62
	DeleteSubscr Code = 63

	// Stack
	Swap   Code = 70
	Copy   Code = 71
	PopTop Code = 72

	// Push constants
	Undefined Code = 80
	Null      Code = 81
	False     Code = 82
	True      Code = 83

	// Iteration
	ForIter Code = 90 // operand: jump delta taken when the iterator is exhausted
	GetIter Code = 91 // operand: IterValues or IterKeys

	// Closures
	LoadClosure Code = 120 // operands: function constant index, free variable count
	MakeCell    Code = 121 // operands: variable index, CellLocal or CellFree

	// Exception handling
	PushExcept Code = 140 // operand: forward offset of the handler
	PopExcept  Code = 141
	Throw      Code = 142
)

// Declaration kinds used by DeclareGlobal.
const (
	DeclareVar   = 0
	DeclareLet   = 1
	DeclareConst = 2
)

// Iteration kinds used by GetIter.
const (
	IterValues = 0 // for...of
	IterKeys   = 1 // for...in
)

// Variable sources used by MakeCell.
const (
	CellLocal = 0
	CellFree  = 1
)

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, subtraction, multiplication, etc.
type BinaryOpType uint16

const (
	Add            BinaryOpType = 1
	Subtract       BinaryOpType = 2
	Multiply       BinaryOpType = 3
	Divide         BinaryOpType = 4
	Modulo         BinaryOpType = 5
	Power          BinaryOpType = 6
	LShift         BinaryOpType = 7
	RShift         BinaryOpType = 8
	UnsignedRShift BinaryOpType = 9
	BitwiseAnd     BinaryOpType = 10
	BitwiseOr      BinaryOpType = 11
	BitwiseXor     BinaryOpType = 12
)

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	switch bop {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case Power:
		return "**"
	case LShift:
		return "<<"
	case RShift:
		return ">>"
	case UnsignedRShift:
		return ">>>"
	case BitwiseAnd:
		return "&"
	case BitwiseOr:
		return "|"
	case BitwiseXor:
		return "^"
	default:
		return ""
	}
}

// CompareOpType describes a type of comparison operation. For example, less
// than, greater than, equal, etc.
type CompareOpType uint16

const (
	LessThan           CompareOpType = 1
	LessThanOrEqual    CompareOpType = 2
	Equal              CompareOpType = 3
	NotEqual           CompareOpType = 4
	GreaterThan        CompareOpType = 5
	GreaterThanOrEqual CompareOpType = 6
	StrictEqual        CompareOpType = 7
	StrictNotEqual     CompareOpType = 8
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (cop CompareOpType) String() string {
	switch cop {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case StrictEqual:
		return "==="
	case StrictNotEqual:
		return "!=="
	default:
		return ""
	}
}

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op    Code
		name  string
		count int
	}
	ops := []opInfo{
		{ArrayAppend, "ARRAY_APPEND", 0},
		{ArrayExtend, "ARRAY_EXTEND", 0},
		{BinaryOp, "BINARY_OP", 1},
		{BinarySubscr, "BINARY_SUBSCR", 0},
		{BuildArray, "BUILD_ARRAY", 1},
		{BuildObject, "BUILD_OBJECT", 1},
		{Call, "CALL", 1},
		{CallMethod, "CALL_METHOD", 1},
		{CallSpread, "CALL_SPREAD", 1},
		{CompareOp, "COMPARE_OP", 1},
		{ContainsOp, "CONTAINS_OP", 0},
		{Copy, "COPY", 1},
		{DeclareGlobal, "DECLARE_GLOBAL", 2},
		{DeleteAttr, "DELETE_ATTR", 1},
		{DeleteSubscr, "DELETE_SUBSCR", 0},
		{False, "FALSE", 0},
		{ForIter, "FOR_ITER", 1},
		{GetIter, "GET_ITER", 1},
		{InitFast, "INIT_FAST", 1},
		{InitGlobal, "INIT_GLOBAL", 1},
		{InitModule, "INIT_MODULE", 1},
		{InstanceOf, "INSTANCE_OF", 0},
		{JumpBackward, "JUMP_BACKWARD", 1},
		{JumpForward, "JUMP_FORWARD", 1},
		{LoadAttr, "LOAD_ATTR", 1},
		{LoadClosure, "LOAD_CLOSURE", 2},
		{LoadConst, "LOAD_CONST", 1},
		{LoadFast, "LOAD_FAST", 1},
		{LoadFree, "LOAD_FREE", 1},
		{LoadGlobal, "LOAD_GLOBAL", 1},
		{LoadGlobalTypeof, "LOAD_GLOBAL_TYPEOF", 1},
		{LoadModule, "LOAD_MODULE", 1},
		{LoadThis, "LOAD_THIS", 0},
		{LoadCallee, "LOAD_CALLEE", 0},
		{RenewFast, "RENEW_FAST", 1},
		{MakeCell, "MAKE_CELL", 2},
		{New, "NEW", 1},
		{NewSpread, "NEW_SPREAD", 0},
		{Nop, "NOP", 0},
		{Null, "NULL", 0},
		{ObjectSet, "OBJECT_SET", 0},
		{ObjectSpread, "OBJECT_SPREAD", 0},
		{PopExcept, "POP_EXCEPT", 0},
		{PopJumpForwardIfFalse, "POP_JUMP_FORWARD_IF_FALSE", 1},
		{PopJumpForwardIfNotNullish, "POP_JUMP_FORWARD_IF_NOT_NULLISH", 1},
		{PopJumpForwardIfNullish, "POP_JUMP_FORWARD_IF_NULLISH", 1},
		{PopJumpForwardIfTrue, "POP_JUMP_FORWARD_IF_TRUE", 1},
		{PopTop, "POP_TOP", 0},
		{PushExcept, "PUSH_EXCEPT", 1},
		{ReturnValue, "RETURN_VALUE", 0},
		{StoreAttr, "STORE_ATTR", 1},
		{StoreFast, "STORE_FAST", 1},
		{StoreFree, "STORE_FREE", 1},
		{StoreGlobal, "STORE_GLOBAL", 1},
		{StoreModule, "STORE_MODULE", 1},
		{StoreSubscr, "STORE_SUBSCR", 0},
		{Swap, "SWAP", 1},
		{Throw, "THROW", 0},
		{True, "TRUE", 0},
		{TypeOf, "TYPE_OF", 0},
		{UnaryBitNot, "UNARY_BIT_NOT", 0},
		{UnaryNegative, "UNARY_NEGATIVE", 0},
		{UnaryNot, "UNARY_NOT", 0},
		{UnaryPlus, "UNARY_PLUS", 0},
		{Undefined, "UNDEFINED", 0},
		{Uninitialized, "UNINITIALIZED", 0},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Name:         o.name,
			Code:         o.op,
			OperandCount: o.count,
		}
	}
}

// GetInfo returns information about the given opcode. Unknown opcodes
// return an Info with an empty Name.
func GetInfo(op Code) Info {
	if int(op) >= len(infos) {
		return Info{Code: op}
	}
	return infos[op]
}

// IsValid returns true if the given code is a known opcode.
func IsValid(op Code) bool {
	return GetInfo(op).Name != ""
}

// IsJump returns true if the opcode's first operand is a relative jump.
func IsJump(op Code) bool {
	switch op {
	case JumpForward, JumpBackward, PopJumpForwardIfFalse, PopJumpForwardIfTrue,
		PopJumpForwardIfNullish, PopJumpForwardIfNotNullish, ForIter, PushExcept:
		return true
	}
	return false
}

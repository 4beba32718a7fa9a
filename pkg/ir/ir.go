// Package ir defines the intermediate representation that the optimizer
// and bytecode lowering operate on: named-value instructions grouped into
// basic blocks, grouped into functions.
//
// The IR is deliberately simple. Values are named (an instruction's result
// is the name in Dest), control transfers appear only as the last
// instruction of a block, and every name must have a definition earlier in
// program order. Structural violations surface as *MalformedIRError.
package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Op identifies an IR operation.
type Op int

const (
	// Value-producing operations
	OpConst  Op = iota // Dest = literal A
	OpMov              // Dest = A (copy)
	OpAdd              // Dest = A + B
	OpSub              // Dest = A - B
	OpMul              // Dest = A * B
	OpDiv              // Dest = A / B (dispatches on runtime tags)
	OpDivInt           // Dest = A / B, integer-specialized (floored)
	OpShl              // Dest = A << B
	OpShr              // Dest = A >> B
	OpNeg              // Dest = -A

	// Comparisons (produce booleans)
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Effects
	OpPrint // print A
	OpCall  // Dest = Callee(Args...)

	// Control transfer (only valid as the last instruction of a block)
	OpReturn // return A (A may be the none operand)
	OpJump   // jump Target
	OpBranch // if A then Then else Else
)

var opNames = map[Op]string{
	OpConst:  "const",
	OpMov:    "mov",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpDivInt: "//",
	OpShl:    "<<",
	OpShr:    ">>",
	OpNeg:    "neg",
	OpEq:     "==",
	OpNe:     "!=",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpPrint:  "print",
	OpCall:   "call",
	OpReturn: "return",
	OpJump:   "jump",
	OpBranch: "branch",
}

// String returns the textual name of the operation.
func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsBinary reports whether op takes two value operands (A and B).
func (op Op) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpDivInt, OpShl, OpShr,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsComparison reports whether op produces a boolean.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// IsTerminator reports whether op transfers control.
func (op Op) IsTerminator() bool {
	return op == OpReturn || op == OpJump || op == OpBranch
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// OperandKind tags the payload of an Operand.
type OperandKind int

const (
	OperandNone  OperandKind = iota // absent operand
	OperandInt                      // integer literal
	OperandFloat                    // float literal
	OperandBool                     // boolean literal (from folded comparisons)
	OperandName                     // named value (variable or instruction result)
)

// Operand is a tagged instruction operand: a literal constant or a
// reference to a named value.
type Operand struct {
	Kind  OperandKind
	Name  string
	Int   int64
	Float float64
	Bool  bool
}

// None is the absent operand.
var None = Operand{Kind: OperandNone}

// Int returns an integer literal operand.
func Int(v int64) Operand { return Operand{Kind: OperandInt, Int: v} }

// Float returns a float literal operand.
func Float(v float64) Operand { return Operand{Kind: OperandFloat, Float: v} }

// Bool returns a boolean literal operand.
func Bool(v bool) Operand { return Operand{Kind: OperandBool, Bool: v} }

// Name returns a named-value operand.
func Name(name string) Operand { return Operand{Kind: OperandName, Name: name} }

// IsConst reports whether the operand is a literal.
func (o Operand) IsConst() bool {
	return o.Kind == OperandInt || o.Kind == OperandFloat || o.Kind == OperandBool
}

// IsName reports whether the operand references a named value.
func (o Operand) IsName() bool { return o.Kind == OperandName }

// IsNone reports whether the operand is absent.
func (o Operand) IsNone() bool { return o.Kind == OperandNone }

// String renders the operand for diagnostics.
func (o Operand) String() string {
	switch o.Kind {
	case OperandInt:
		return strconv.FormatInt(o.Int, 10)
	case OperandFloat:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case OperandBool:
		return strconv.FormatBool(o.Bool)
	case OperandName:
		return o.Name
	default:
		return "_"
	}
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is a single IR operation. Dest names the result for
// value-producing operations and is empty otherwise. Branch targets and
// call metadata live in dedicated fields rather than overloading operands.
type Instruction struct {
	Op   Op
	Dest string
	A    Operand
	B    Operand

	// Call metadata
	Callee string
	Args   []Operand

	// Control-transfer targets (block labels)
	Target string // OpJump
	Then   string // OpBranch
	Else   string // OpBranch
}

// NewConst builds Dest = literal.
func NewConst(dest string, lit Operand) *Instruction {
	return &Instruction{Op: OpConst, Dest: dest, A: lit}
}

// NewMov builds Dest = A.
func NewMov(dest string, a Operand) *Instruction {
	return &Instruction{Op: OpMov, Dest: dest, A: a}
}

// NewBinary builds Dest = A op B.
func NewBinary(op Op, dest string, a, b Operand) *Instruction {
	return &Instruction{Op: op, Dest: dest, A: a, B: b}
}

// NewNeg builds Dest = -A.
func NewNeg(dest string, a Operand) *Instruction {
	return &Instruction{Op: OpNeg, Dest: dest, A: a}
}

// NewPrint builds print A.
func NewPrint(a Operand) *Instruction {
	return &Instruction{Op: OpPrint, A: a}
}

// NewCall builds Dest = Callee(Args...).
func NewCall(dest, callee string, args ...Operand) *Instruction {
	return &Instruction{Op: OpCall, Dest: dest, Callee: callee, Args: args}
}

// NewReturn builds return A. Pass None for a bare return.
func NewReturn(a Operand) *Instruction {
	return &Instruction{Op: OpReturn, A: a}
}

// NewJump builds an unconditional jump to target.
func NewJump(target string) *Instruction {
	return &Instruction{Op: OpJump, Target: target}
}

// NewBranch builds a conditional branch on A.
func NewBranch(cond Operand, then, els string) *Instruction {
	return &Instruction{Op: OpBranch, A: cond, Then: then, Else: els}
}

// Uses returns the named values this instruction reads.
func (ins *Instruction) Uses() []string {
	var names []string
	if ins.A.IsName() {
		names = append(names, ins.A.Name)
	}
	if ins.B.IsName() {
		names = append(names, ins.B.Name)
	}
	for _, arg := range ins.Args {
		if arg.IsName() {
			names = append(names, arg.Name)
		}
	}
	return names
}

// Clone returns a deep copy of the instruction.
func (ins *Instruction) Clone() *Instruction {
	cp := *ins
	if ins.Args != nil {
		cp.Args = make([]Operand, len(ins.Args))
		copy(cp.Args, ins.Args)
	}
	return &cp
}

// String renders the instruction in the textual IR form used by tests
// and the -dump-ir flag.
func (ins *Instruction) String() string {
	switch ins.Op {
	case OpConst, OpMov:
		return fmt.Sprintf("%s = %s", ins.Dest, ins.A)
	case OpNeg:
		return fmt.Sprintf("%s = -%s", ins.Dest, ins.A)
	case OpPrint:
		return fmt.Sprintf("print %s", ins.A)
	case OpCall:
		args := make([]string, len(ins.Args))
		for i, a := range ins.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s = call %s(%s)", ins.Dest, ins.Callee, strings.Join(args, ", "))
	case OpReturn:
		if ins.A.IsNone() {
			return "return"
		}
		return fmt.Sprintf("return %s", ins.A)
	case OpJump:
		return fmt.Sprintf("jump %s", ins.Target)
	case OpBranch:
		return fmt.Sprintf("branch %s ? %s : %s", ins.A, ins.Then, ins.Else)
	default:
		return fmt.Sprintf("%s = %s %s %s", ins.Dest, ins.A, ins.Op, ins.B)
	}
}

// ---------------------------------------------------------------------------
// Blocks, functions, programs
// ---------------------------------------------------------------------------

// BasicBlock is an ordered instruction sequence with a single entry.
// Control may transfer only at the final instruction.
type BasicBlock struct {
	Label  string
	Instrs []*Instruction
}

// NewBlock creates an empty block with the given label.
func NewBlock(label string) *BasicBlock {
	return &BasicBlock{Label: label}
}

// Append adds an instruction, rejecting instructions placed after a
// terminator.
func (b *BasicBlock) Append(ins *Instruction) error {
	if n := len(b.Instrs); n > 0 && b.Instrs[n-1].Op.IsTerminator() {
		return &MalformedIRError{
			Block:  b.Label,
			Index:  n,
			Reason: fmt.Sprintf("instruction %q after terminator %q", ins, b.Instrs[n-1]),
		}
	}
	b.Instrs = append(b.Instrs, ins)
	return nil
}

// Terminator returns the block's final instruction if it transfers
// control, or nil for a fallthrough block.
func (b *BasicBlock) Terminator() *Instruction {
	if n := len(b.Instrs); n > 0 && b.Instrs[n-1].Op.IsTerminator() {
		return b.Instrs[n-1]
	}
	return nil
}

// Clone returns a deep copy of the block.
func (b *BasicBlock) Clone() *BasicBlock {
	cp := &BasicBlock{Label: b.Label, Instrs: make([]*Instruction, len(b.Instrs))}
	for i, ins := range b.Instrs {
		cp.Instrs[i] = ins.Clone()
	}
	return cp
}

// Function is a named sequence of basic blocks. Blocks[0] is the entry.
type Function struct {
	Name   string
	Params []string
	Blocks []*BasicBlock
}

// NewFunction creates a function with no blocks yet.
func NewFunction(name string, params ...string) *Function {
	return &Function{Name: name, Params: params}
}

// AddBlock appends a block and returns it for chaining.
func (f *Function) AddBlock(b *BasicBlock) *BasicBlock {
	f.Blocks = append(f.Blocks, b)
	return b
}

// Block returns the block with the given label, or nil.
func (f *Function) Block(label string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// InstrCount returns the total instruction count across all blocks.
// The feedback inliner uses this as its size measure.
func (f *Function) InstrCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Clone returns a deep copy of the function.
func (f *Function) Clone() *Function {
	cp := &Function{Name: f.Name, Params: append([]string(nil), f.Params...)}
	cp.Blocks = make([]*BasicBlock, len(f.Blocks))
	for i, b := range f.Blocks {
		cp.Blocks[i] = b.Clone()
	}
	return cp
}

// String renders the function as textual IR.
func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(%s):\n", f.Name, strings.Join(f.Params, ", "))
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Label)
		for _, ins := range b.Instrs {
			fmt.Fprintf(&sb, "  %s\n", ins)
		}
	}
	return sb.String()
}

// MainName is the function every program starts in.
const MainName = "main"

// Program maps function names to their blocks. Function order is
// preserved for deterministic lowering and printing.
type Program struct {
	Funcs  []*Function
	byName map[string]*Function
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{byName: make(map[string]*Function)}
}

// AddFunction registers a function. Redefinition is malformed.
func (p *Program) AddFunction(f *Function) error {
	if _, ok := p.byName[f.Name]; ok {
		return &MalformedIRError{Func: f.Name, Reason: "function redefined"}
	}
	p.Funcs = append(p.Funcs, f)
	p.byName[f.Name] = f
	return nil
}

// Function returns the named function, or nil.
func (p *Program) Function(name string) *Function {
	return p.byName[name]
}

// Clone returns a deep copy of the program. The feedback stage clones
// before rewriting so the caller's program is never mutated.
func (p *Program) Clone() *Program {
	cp := NewProgram()
	for _, f := range p.Funcs {
		cp.AddFunction(f.Clone()) //nolint:errcheck // names are unique in the source
	}
	return cp
}

// String renders the whole program as textual IR.
func (p *Program) String() string {
	var sb strings.Builder
	for _, f := range p.Funcs {
		sb.WriteString(f.String())
	}
	return sb.String()
}

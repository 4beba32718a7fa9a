package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Listener receives the VM's instrumentation events. Events are emitted
// synchronously from the dispatch loop; a listener must not retain the
// VM or block.
type Listener interface {
	// EnterBlock fires when execution enters a basic block.
	EnterBlock(function, block string)
	// Branch fires at every conditional branch with its outcome.
	Branch(site string, taken bool)
	// Call fires when a function is invoked.
	Call(function string)
	// Observe fires on every variable store and parameter binding with
	// the bound value's tag.
	Observe(function, variable string, kind Kind)
}

// nopListener swallows all events; used when no profiler is attached.
type nopListener struct{}

func (nopListener) EnterBlock(string, string)  {}
func (nopListener) Branch(string, bool)        {}
func (nopListener) Call(string)                {}
func (nopListener) Observe(string, string, Kind) {}

// frame is the execution state of a single function invocation: its
// code, instruction pointer, and variable bindings. The operand stack is
// shared across frames.
type frame struct {
	fn    *Function
	ip    int
	vars  map[string]Value
	block string // label of the block being executed, for branch sites
}

// VM executes a lowered module. One VM runs one module at a time; its
// state (operand stack, variables, frames) is reset by Execute and
// destroyed when it returns.
type VM struct {
	module   *Module
	stack    []Value
	sp       int
	frames   []*frame
	fp       int
	listener Listener

	// Out receives program output from print instructions.
	Out io.Writer
	// Trace dumps each instruction to TraceOut before executing it.
	Trace bool
	// TraceOut receives trace output, kept apart from program output.
	TraceOut io.Writer

	curFn string
	curPC int
}

// NewVM creates a VM with default sizing.
func NewVM() *VM {
	return &VM{
		stack:    make([]Value, 1024),
		frames:   make([]*frame, 0, 64),
		fp:       -1,
		Out:      os.Stdout,
		TraceOut: os.Stderr,
	}
}

// Execute interprets the module starting at main's first instruction and
// returns main's result.
func (vm *VM) Execute(m *Module) (Value, error) {
	return vm.ExecuteWithListener(m, nil)
}

// ExecuteWithListener runs the module with instrumentation events
// delivered to l. Runtime faults halt execution immediately; state
// mutated before the fault is not rolled back.
func (vm *VM) ExecuteWithListener(m *Module, l Listener) (result Value, err error) {
	main, ok := m.Functions["main"]
	if !ok {
		return Nil, &RuntimeFault{Kind: FaultUndefinedFunction, Function: "main", Detail: "module has no main"}
	}
	if l == nil {
		l = nopListener{}
	}
	vm.module = m
	vm.listener = l
	vm.sp = 0
	vm.frames = vm.frames[:0]
	vm.fp = -1
	vm.pushFrame(main, nil)

	defer func() {
		if r := recover(); r != nil {
			p, ok := r.(vmPanic)
			if !ok {
				panic(r)
			}
			p.fault.Function = vm.curFn
			p.fault.PC = vm.curPC
			result, err = Nil, p.fault
		}
	}()

	return vm.run(), nil
}

// vmPanic carries a fault out of the dispatch loop's helpers.
type vmPanic struct{ fault *RuntimeFault }

func (vm *VM) fault(kind FaultKind, format string, args ...any) {
	panic(vmPanic{&RuntimeFault{Kind: kind, Detail: fmt.Sprintf(format, args...)}})
}

// ---------------------------------------------------------------------------
// Stack and frame management
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		grown := make([]Value, len(vm.stack)*2)
		copy(grown, vm.stack)
		vm.stack = grown
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp <= 0 {
		vm.fault(FaultStackUnderflow, "pop on empty stack")
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) pushFrame(fn *Function, args []Value) {
	vars := make(map[string]Value, len(fn.Params)+4)
	for i, param := range fn.Params {
		vars[param] = args[i]
		// Parameter bindings are typed observations like any store.
		vm.listener.Observe(fn.Name, param, args[i].Kind())
	}
	vm.frames = append(vm.frames, &frame{fn: fn, vars: vars})
	vm.fp++
}

func (vm *VM) popFrame() {
	vm.frames = vm.frames[:vm.fp]
	vm.fp--
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

func (vm *VM) run() Value {
	for {
		f := vm.frames[vm.fp]
		code := f.fn.Code

		if f.ip >= len(code) {
			// Fell off the end: implicit nil return.
			vm.popFrame()
			if vm.fp < 0 {
				return Nil
			}
			vm.push(Nil)
			continue
		}

		vm.curFn, vm.curPC = f.fn.Name, f.ip
		op := Opcode(code[f.ip])
		f.ip++

		if vm.Trace {
			info := GetOpcodeInfo(op)
			fmt.Fprintf(vm.TraceOut, "[%04d] %-12s %s sp=%d\n", vm.curPC, info.Name, f.fn.Name, vm.sp)
		}

		switch op {
		case OpNop:

		case OpPop:
			vm.pop()

		case OpHalt:
			if vm.sp > 0 {
				return vm.pop()
			}
			return Nil

		case OpConst:
			idx := vm.readU16(f)
			if int(idx) >= len(vm.module.Constants) {
				vm.fault(FaultBadOperand, "constant index %d out of range", idx)
			}
			vm.push(vm.module.Constants[idx])

		case OpConstNil:
			vm.push(Nil)

		case OpLoadVar:
			name := vm.readName(f)
			v, ok := f.vars[name]
			if !ok {
				vm.fault(FaultUndefinedVariable, "%s", name)
			}
			vm.push(v)

		case OpStoreVar:
			name := vm.readName(f)
			v := vm.pop()
			f.vars[name] = v
			vm.listener.Observe(f.fn.Name, name, v.Kind())

		case OpAdd, OpSub, OpMul, OpDiv, OpDivInt, OpShl, OpShr:
			b := vm.pop()
			a := vm.pop()
			vm.push(vm.arith(op, a, b))

		case OpNeg:
			v := vm.pop()
			switch {
			case v.IsInt():
				vm.push(FromInt(-v.AsInt()))
			case v.IsFloat():
				vm.push(FromFloat(-v.AsFloat()))
			default:
				vm.fault(FaultTypeMismatch, "negate %s", v.Kind())
			}

		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			b := vm.pop()
			a := vm.pop()
			vm.push(vm.compare(op, a, b))

		case OpJump:
			f.ip = int(vm.readU16(f))

		case OpJumpFalse:
			target := vm.readU16(f)
			cond := vm.pop()
			if !cond.IsBool() {
				vm.fault(FaultTypeMismatch, "branch on %s", cond.Kind())
			}
			taken := cond.AsBool()
			vm.listener.Branch(f.fn.Name+":"+f.block, taken)
			if !taken {
				f.ip = int(target)
			}

		case OpCall:
			name := vm.readName(f)
			argc := int(vm.readU8(f))
			callee, ok := vm.module.Functions[name]
			if !ok {
				vm.fault(FaultUndefinedFunction, "%s", name)
			}
			if argc != len(callee.Params) {
				vm.fault(FaultBadOperand, "%s expects %d args, got %d", name, len(callee.Params), argc)
			}
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			vm.listener.Call(name)
			vm.pushFrame(callee, args)

		case OpReturn:
			result := vm.pop()
			vm.popFrame()
			if vm.fp < 0 {
				return result
			}
			vm.push(result)

		case OpReturnNil:
			vm.popFrame()
			if vm.fp < 0 {
				return Nil
			}
			vm.push(Nil)

		case OpPrint:
			fmt.Fprintln(vm.Out, vm.pop())

		case OpEnterBlock:
			f.block = vm.readName(f)
			vm.listener.EnterBlock(f.fn.Name, f.block)

		default:
			vm.fault(FaultUnknownOpcode, "0x%02X", byte(op))
		}
	}
}

func (vm *VM) readU8(f *frame) byte {
	if f.ip >= len(f.fn.Code) {
		vm.fault(FaultBadOperand, "truncated operand")
	}
	v := f.fn.Code[f.ip]
	f.ip++
	return v
}

func (vm *VM) readU16(f *frame) uint16 {
	if f.ip+2 > len(f.fn.Code) {
		vm.fault(FaultBadOperand, "truncated operand")
	}
	v := binary.BigEndian.Uint16(f.fn.Code[f.ip:])
	f.ip += 2
	return v
}

func (vm *VM) readName(f *frame) string {
	idx := vm.readU16(f)
	if int(idx) >= len(vm.module.Names) {
		vm.fault(FaultBadOperand, "name index %d out of range", idx)
	}
	return vm.module.Names[idx]
}

// arith dispatches an arithmetic opcode on the operand tag pair.
func (vm *VM) arith(op Opcode, a, b Value) Value {
	bothInt := a.IsInt() && b.IsInt()

	switch op {
	case OpDivInt:
		// Type-specialized by the feedback stage: no dynamic dispatch,
		// no fallback for a contradicting observation.
		if !bothInt {
			vm.fault(FaultTypeMismatch, "specialized int division on %s, %s", a.Kind(), b.Kind())
		}
		if b.AsInt() == 0 {
			vm.fault(FaultDivisionByZero, "%d // 0", a.AsInt())
		}
		return FromInt(floorDiv(a.AsInt(), b.AsInt()))

	case OpShl, OpShr:
		if !b.IsInt() {
			vm.fault(FaultTypeMismatch, "shift count is %s", b.Kind())
		}
		n := b.AsInt()
		if n < 0 || n > 63 {
			vm.fault(FaultBadOperand, "shift count %d", n)
		}
		if a.IsInt() {
			if op == OpShl {
				return FromInt(a.AsInt() << uint(n))
			}
			return FromInt(a.AsInt() >> uint(n))
		}
		if a.IsFloat() {
			// A shift is a scale by 2^n; on a float operand that is an
			// exact exponent adjustment, equal to the multiply or
			// divide it reduced from.
			if op == OpShl {
				return FromFloat(math.Ldexp(a.AsFloat(), int(n)))
			}
			return FromFloat(math.Ldexp(a.AsFloat(), -int(n)))
		}
		vm.fault(FaultTypeMismatch, "shift on %s", a.Kind())
	}

	if !a.IsNumeric() || !b.IsNumeric() {
		vm.fault(FaultTypeMismatch, "%s on %s, %s", GetOpcodeInfo(op).Name, a.Kind(), b.Kind())
	}

	if bothInt {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OpAdd:
			return FromInt(x + y)
		case OpSub:
			return FromInt(x - y)
		case OpMul:
			return FromInt(x * y)
		case OpDiv:
			if y == 0 {
				vm.fault(FaultDivisionByZero, "%d / 0", x)
			}
			return FromInt(floorDiv(x, y))
		}
	}

	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OpAdd:
		return FromFloat(x + y)
	case OpSub:
		return FromFloat(x - y)
	case OpMul:
		return FromFloat(x * y)
	case OpDiv:
		if y == 0 {
			vm.fault(FaultDivisionByZero, "%g / 0", x)
		}
		return FromFloat(x / y)
	}
	vm.fault(FaultUnknownOpcode, "0x%02X in arith", byte(op))
	return Nil
}

// compare dispatches a comparison opcode. Equality works on any tag
// pair; ordering requires numbers.
func (vm *VM) compare(op Opcode, a, b Value) Value {
	switch op {
	case OpEq, OpNe:
		var eq bool
		if a.IsNumeric() && b.IsNumeric() {
			eq = a.AsNumber() == b.AsNumber()
		} else {
			eq = a == b
		}
		if op == OpNe {
			eq = !eq
		}
		return FromBool(eq)
	}

	if !a.IsNumeric() || !b.IsNumeric() {
		vm.fault(FaultTypeMismatch, "%s on %s, %s", GetOpcodeInfo(op).Name, a.Kind(), b.Kind())
	}
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case OpLt:
		return FromBool(x < y)
	case OpLe:
		return FromBool(x <= y)
	case OpGt:
		return FromBool(x > y)
	case OpGe:
		return FromBool(x >= y)
	}
	vm.fault(FaultUnknownOpcode, "0x%02X in compare", byte(op))
	return Nil
}

// floorDiv divides rounding toward negative infinity, matching the
// x/2^k == x>>k strength-reduction identity for all integers.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

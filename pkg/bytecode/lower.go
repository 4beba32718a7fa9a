package bytecode

import "github.com/Savani-Raj/minivm-plus/pkg/ir"

// binaryOps maps IR operations to their bytecode counterparts.
var binaryOps = map[ir.Op]Opcode{
	ir.OpAdd:    OpAdd,
	ir.OpSub:    OpSub,
	ir.OpMul:    OpMul,
	ir.OpDiv:    OpDiv,
	ir.OpDivInt: OpDivInt,
	ir.OpShl:    OpShl,
	ir.OpShr:    OpShr,
	ir.OpEq:     OpEq,
	ir.OpNe:     OpNe,
	ir.OpLt:     OpLt,
	ir.OpLe:     OpLe,
	ir.OpGt:     OpGt,
	ir.OpGe:     OpGe,
}

// Lower flattens an optimized IR program into a module: one linear code
// section per function, jump targets resolved to absolute offsets, and
// literals interned into the shared constant pool.
//
// Lowering is pure and deterministic. An operand that still refers to a
// removed or undefined value fails with *UnresolvedReferenceError.
func Lower(prog *ir.Program) (*Module, error) {
	m := NewModule()
	for _, fn := range prog.Funcs {
		lowered, err := lowerFunction(m, prog, fn)
		if err != nil {
			return nil, err
		}
		m.AddFunction(lowered)
	}
	return m, nil
}

type jumpPatch struct {
	placeholder int
	label       string
}

func lowerFunction(m *Module, prog *ir.Program, fn *ir.Function) (*Function, error) {
	f := &Function{Name: fn.Name, Params: append([]string(nil), fn.Params...)}

	defined := make(map[string]bool, len(fn.Params))
	for _, p := range fn.Params {
		defined[p] = true
	}

	blockOffsets := make(map[string]int, len(fn.Blocks))
	var patches []jumpPatch

	pushOperand := func(o ir.Operand) error {
		switch o.Kind {
		case ir.OperandInt:
			f.EmitU16(OpConst, m.AddConstant(FromInt(o.Int)))
		case ir.OperandFloat:
			f.EmitU16(OpConst, m.AddConstant(FromFloat(o.Float)))
		case ir.OperandBool:
			f.EmitU16(OpConst, m.AddConstant(FromBool(o.Bool)))
		case ir.OperandName:
			if !defined[o.Name] {
				return &UnresolvedReferenceError{Function: fn.Name, Name: o.Name}
			}
			f.EmitU16(OpLoadVar, m.InternName(o.Name))
		default:
			f.Emit(OpConstNil)
		}
		return nil
	}

	storeDest := func(dest string) {
		f.EmitU16(OpStoreVar, m.InternName(dest))
		defined[dest] = true
	}

	for _, b := range fn.Blocks {
		blockOffsets[b.Label] = f.CurrentOffset()
		f.EmitU16(OpEnterBlock, m.InternName(b.Label))

		for _, ins := range b.Instrs {
			switch ins.Op {
			case ir.OpConst, ir.OpMov:
				if err := pushOperand(ins.A); err != nil {
					return nil, err
				}
				storeDest(ins.Dest)

			case ir.OpNeg:
				if err := pushOperand(ins.A); err != nil {
					return nil, err
				}
				f.Emit(OpNeg)
				storeDest(ins.Dest)

			case ir.OpPrint:
				if err := pushOperand(ins.A); err != nil {
					return nil, err
				}
				f.Emit(OpPrint)

			case ir.OpCall:
				if prog.Function(ins.Callee) == nil {
					return nil, &UnresolvedReferenceError{Function: fn.Name, Name: ins.Callee}
				}
				for _, arg := range ins.Args {
					if err := pushOperand(arg); err != nil {
						return nil, err
					}
				}
				f.EmitU16(OpCall, m.InternName(ins.Callee))
				f.Code = append(f.Code, byte(len(ins.Args)))
				if ins.Dest != "" {
					storeDest(ins.Dest)
				} else {
					f.Emit(OpPop)
				}

			case ir.OpReturn:
				if ins.A.IsNone() {
					f.Emit(OpReturnNil)
				} else {
					if err := pushOperand(ins.A); err != nil {
						return nil, err
					}
					f.Emit(OpReturn)
				}

			case ir.OpJump:
				patches = append(patches, jumpPatch{f.EmitJump(OpJump), ins.Target})

			case ir.OpBranch:
				if err := pushOperand(ins.A); err != nil {
					return nil, err
				}
				patches = append(patches, jumpPatch{f.EmitJump(OpJumpFalse), ins.Else})
				patches = append(patches, jumpPatch{f.EmitJump(OpJump), ins.Then})

			default:
				op, ok := binaryOps[ins.Op]
				if !ok {
					return nil, &UnresolvedReferenceError{Function: fn.Name, Name: ins.Op.String()}
				}
				if err := pushOperand(ins.A); err != nil {
					return nil, err
				}
				if err := pushOperand(ins.B); err != nil {
					return nil, err
				}
				f.Emit(op)
				storeDest(ins.Dest)
			}
		}
	}

	// A function that falls off its last block returns nil implicitly.
	if n := len(fn.Blocks); n == 0 || fn.Blocks[n-1].Terminator() == nil {
		f.Emit(OpReturnNil)
	}

	for _, p := range patches {
		target, ok := blockOffsets[p.label]
		if !ok {
			return nil, &UnresolvedReferenceError{Function: fn.Name, Name: p.label}
		}
		f.PatchJumpTo(p.placeholder, target)
	}
	return f, nil
}

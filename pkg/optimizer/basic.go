// Package optimizer implements the staged IR optimization passes: the
// basic stage (constant folding, constant propagation, algebraic
// simplification) and the advanced stage (strength reduction, common
// subexpression elimination, copy propagation, dead code elimination).
//
// All passes are pure rewrites over one function at a time. Fixed points
// are reached with explicit changed flags and a bounded pass count, never
// recursion. Constant knowledge is tracked per basic block and never
// carried across block boundaries, which keeps the passes correct in the
// presence of loops without a dataflow solver.
package optimizer

import "github.com/Savani-Raj/minivm-plus/pkg/ir"

// DefaultMaxPasses bounds fixed-point iteration of each stage.
const DefaultMaxPasses = 10

// Basic runs constant folding, constant propagation, and algebraic
// simplification to a fixed point (or until maxPasses). It reports
// whether anything changed.
func Basic(fn *ir.Function, maxPasses int) bool {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	anyChange := false
	for pass := 0; pass < maxPasses; pass++ {
		changed := foldConstants(fn)
		changed = propagateConstants(fn) || changed
		changed = simplifyAlgebra(fn) || changed
		if !changed {
			break
		}
		anyChange = true
	}
	return anyChange
}

// foldConstants replaces instructions whose operands are all literals
// with a single const instruction holding the computed result. Division
// by a literal zero is left alone so it surfaces as a runtime fault.
func foldConstants(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for i, ins := range b.Instrs {
			if !ins.Op.IsBinary() || !ins.A.IsConst() || !ins.B.IsConst() {
				continue
			}
			result, ok := evalConst(ins.Op, ins.A, ins.B)
			if !ok {
				continue
			}
			b.Instrs[i] = ir.NewConst(ins.Dest, result)
			changed = true
		}
	}
	return changed
}

// evalConst evaluates op over two literal operands. It refuses division
// by zero (deferred to runtime) and shifts of non-integers.
func evalConst(op ir.Op, a, b ir.Operand) (ir.Operand, bool) {
	if op.IsComparison() {
		return evalComparison(op, a, b)
	}

	bothInt := a.Kind == ir.OperandInt && b.Kind == ir.OperandInt
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpDivInt:
		if a.Kind == ir.OperandBool || b.Kind == ir.OperandBool {
			return ir.None, false
		}
	case ir.OpShl, ir.OpShr:
		if !bothInt {
			return ir.None, false
		}
	default:
		return ir.None, false
	}

	if bothInt {
		switch op {
		case ir.OpAdd:
			return ir.Int(a.Int + b.Int), true
		case ir.OpSub:
			return ir.Int(a.Int - b.Int), true
		case ir.OpMul:
			return ir.Int(a.Int * b.Int), true
		case ir.OpDiv, ir.OpDivInt:
			if b.Int == 0 {
				return ir.None, false
			}
			return ir.Int(floorDiv(a.Int, b.Int)), true
		case ir.OpShl:
			return ir.Int(a.Int << uint(b.Int)), true
		case ir.OpShr:
			return ir.Int(a.Int >> uint(b.Int)), true
		}
		return ir.None, false
	}

	// Mixed or float arithmetic folds to a float.
	x, y := floatOf(a), floatOf(b)
	switch op {
	case ir.OpAdd:
		return ir.Float(x + y), true
	case ir.OpSub:
		return ir.Float(x - y), true
	case ir.OpMul:
		return ir.Float(x * y), true
	case ir.OpDiv:
		if y == 0 {
			return ir.None, false
		}
		return ir.Float(x / y), true
	}
	return ir.None, false
}

func evalComparison(op ir.Op, a, b ir.Operand) (ir.Operand, bool) {
	if a.Kind == ir.OperandBool || b.Kind == ir.OperandBool {
		if a.Kind != ir.OperandBool || b.Kind != ir.OperandBool {
			return ir.None, false
		}
		switch op {
		case ir.OpEq:
			return ir.Bool(a.Bool == b.Bool), true
		case ir.OpNe:
			return ir.Bool(a.Bool != b.Bool), true
		}
		return ir.None, false
	}
	x, y := floatOf(a), floatOf(b)
	switch op {
	case ir.OpEq:
		return ir.Bool(x == y), true
	case ir.OpNe:
		return ir.Bool(x != y), true
	case ir.OpLt:
		return ir.Bool(x < y), true
	case ir.OpLe:
		return ir.Bool(x <= y), true
	case ir.OpGt:
		return ir.Bool(x > y), true
	case ir.OpGe:
		return ir.Bool(x >= y), true
	}
	return ir.None, false
}

func floatOf(o ir.Operand) float64 {
	if o.Kind == ir.OperandInt {
		return float64(o.Int)
	}
	return o.Float
}

// floorDiv divides rounding toward negative infinity, matching the
// arithmetic-shift identity x/2^k == x>>k for all integers.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// propagateConstants rewrites uses of a name whose only reaching
// definition within the block is a literal. Knowledge is invalidated on
// redefinition and dropped at block boundaries.
func propagateConstants(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		consts := make(map[string]ir.Operand)
		for i, ins := range b.Instrs {
			sub := func(o ir.Operand) ir.Operand {
				if o.IsName() {
					if lit, ok := consts[o.Name]; ok {
						changed = true
						return lit
					}
				}
				return o
			}

			switch ins.Op {
			case ir.OpConst:
				consts[ins.Dest] = ins.A
			case ir.OpMov:
				if ins.A.IsName() {
					if lit, ok := consts[ins.A.Name]; ok {
						b.Instrs[i] = ir.NewConst(ins.Dest, lit)
						consts[ins.Dest] = lit
						changed = true
						continue
					}
				}
				if ins.A.IsConst() {
					b.Instrs[i] = ir.NewConst(ins.Dest, ins.A)
					consts[ins.Dest] = ins.A
					changed = true
					continue
				}
				delete(consts, ins.Dest)
			default:
				ins.A = sub(ins.A)
				ins.B = sub(ins.B)
				for j := range ins.Args {
					ins.Args[j] = sub(ins.Args[j])
				}
				if ins.Dest != "" {
					delete(consts, ins.Dest)
				}
			}
		}
	}
	return changed
}

// simplifyAlgebra rewrites structural identities: x+0, 0+x, x-0, x*1,
// 1*x, x*0, 0*x. Matching is on operand values, not text.
func simplifyAlgebra(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for i, ins := range b.Instrs {
			switch ins.Op {
			case ir.OpAdd:
				if isIntLit(ins.B, 0) {
					b.Instrs[i] = ir.NewMov(ins.Dest, ins.A)
					changed = true
				} else if isIntLit(ins.A, 0) {
					b.Instrs[i] = ir.NewMov(ins.Dest, ins.B)
					changed = true
				}
			case ir.OpSub:
				if isIntLit(ins.B, 0) {
					b.Instrs[i] = ir.NewMov(ins.Dest, ins.A)
					changed = true
				}
			case ir.OpMul:
				switch {
				case isIntLit(ins.A, 0) || isIntLit(ins.B, 0):
					b.Instrs[i] = ir.NewConst(ins.Dest, ir.Int(0))
					changed = true
				case isIntLit(ins.B, 1):
					b.Instrs[i] = ir.NewMov(ins.Dest, ins.A)
					changed = true
				case isIntLit(ins.A, 1):
					b.Instrs[i] = ir.NewMov(ins.Dest, ins.B)
					changed = true
				}
			}
		}
	}
	return changed
}

func isIntLit(o ir.Operand, v int64) bool {
	return o.Kind == ir.OperandInt && o.Int == v
}

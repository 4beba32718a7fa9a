package optimizer

import "github.com/Savani-Raj/minivm-plus/pkg/ir"

// Advanced runs the second-stage passes in order: strength reduction,
// common subexpression elimination, copy propagation, dead code
// elimination. It reports whether anything changed.
func Advanced(fn *ir.Function) bool {
	changed := reduceStrength(fn)
	changed = eliminateCommonSubexpressions(fn) || changed
	changed = propagateCopies(fn) || changed
	changed = eliminateDeadCode(fn) || changed
	return changed
}

// reduceStrength rewrites multiplications and divisions by compile-time
// powers of two:
//
//	x * 2   -> x + x
//	x * 2^k -> x << k   (k >= 2)
//	x / 2^k -> x >> k
//
// Multiplication is commutative, so a literal on either side fires; the
// rewrite never fires for non-powers-of-two. Specialized integer
// division (DivInt) is not reduced: it carries an operand type check a
// shift does not perform.
func reduceStrength(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		for i, ins := range b.Instrs {
			switch ins.Op {
			case ir.OpMul:
				val, other, ok := splitIntLit(ins.A, ins.B)
				if !ok {
					continue
				}
				if val == 2 {
					b.Instrs[i] = ir.NewBinary(ir.OpAdd, ins.Dest, other, other)
					changed = true
				} else if k, pow := log2(val); pow {
					b.Instrs[i] = ir.NewBinary(ir.OpShl, ins.Dest, other, ir.Int(k))
					changed = true
				}
			case ir.OpDiv:
				if ins.B.Kind != ir.OperandInt {
					continue
				}
				if k, pow := log2(ins.B.Int); pow {
					b.Instrs[i] = ir.NewBinary(ir.OpShr, ins.Dest, ins.A, ir.Int(k))
					changed = true
				}
			}
		}
	}
	return changed
}

// splitIntLit returns the integer literal and the other operand when
// exactly one of a, b is an integer literal.
func splitIntLit(a, b ir.Operand) (int64, ir.Operand, bool) {
	aLit := a.Kind == ir.OperandInt
	bLit := b.Kind == ir.OperandInt
	switch {
	case bLit && !aLit:
		return b.Int, a, true
	case aLit && !bLit:
		return a.Int, b, true
	default:
		return 0, ir.None, false
	}
}

// log2 returns k such that v == 2^k, for v >= 2.
func log2(v int64) (int64, bool) {
	if v < 2 || v&(v-1) != 0 {
		return 0, false
	}
	k := int64(0)
	for v > 1 {
		v >>= 1
		k++
	}
	return k, true
}

// exprKey identifies a pure binary expression by opcode and operand
// identities for intra-block CSE.
type exprKey struct {
	op   ir.Op
	a, b string
}

func operandID(o ir.Operand) string {
	return string(rune('0'+int(o.Kind))) + ":" + o.String()
}

// eliminateCommonSubexpressions replaces a binary instruction that is
// structurally identical to an earlier one in the same block, with no
// intervening redefinition of any operand, by a copy of the earlier
// result. Scope is strictly intra-block.
func eliminateCommonSubexpressions(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		available := make(map[exprKey]string)
		for i, ins := range b.Instrs {
			var pending exprKey
			havePending := false
			if ins.Op.IsBinary() {
				key := exprKey{op: ins.Op, a: operandID(ins.A), b: operandID(ins.B)}
				if prev, ok := available[key]; ok {
					b.Instrs[i] = ir.NewMov(ins.Dest, ir.Name(prev))
					changed = true
				} else {
					pending, havePending = key, true
				}
			}
			if ins.Dest != "" {
				invalidate(available, ins.Dest)
			}
			// An expression reading its own destination (x = x + 1)
			// is stale the moment it executes; never record it.
			if havePending {
				id := operandID(ir.Name(ins.Dest))
				if pending.a != id && pending.b != id {
					available[pending] = ins.Dest
				}
			}
		}
	}
	return changed
}

// invalidate drops every available expression that reads or produced the
// redefined name.
func invalidate(available map[exprKey]string, name string) {
	id := operandID(ir.Name(name))
	for key, dest := range available {
		if dest == name || key.a == id || key.b == id {
			delete(available, key)
		}
	}
}

// propagateCopies substitutes the source of a plain copy for later uses
// of its destination within the block. The copy itself is left in place;
// dead code elimination removes it once nothing reads the destination.
func propagateCopies(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks {
		copies := make(map[string]string)
		for _, ins := range b.Instrs {
			sub := func(o ir.Operand) ir.Operand {
				if o.IsName() {
					if src, ok := copies[o.Name]; ok {
						changed = true
						return ir.Name(src)
					}
				}
				return o
			}
			ins.A = sub(ins.A)
			ins.B = sub(ins.B)
			for j := range ins.Args {
				ins.Args[j] = sub(ins.Args[j])
			}

			if ins.Dest != "" {
				// Redefinition kills copies into and out of the name.
				delete(copies, ins.Dest)
				for dst, src := range copies {
					if src == ins.Dest {
						delete(copies, dst)
					}
				}
			}
			if ins.Op == ir.OpMov && ins.A.IsName() {
				copies[ins.Dest] = ins.A.Name
			}
		}
	}
	return changed
}

// eliminateDeadCode removes instructions whose results are not
// transitively required by the function's observable behavior: returns,
// branch conditions, calls, and prints. Removal iterates to a fixed
// point since dropping an instruction can orphan its producers.
func eliminateDeadCode(fn *ir.Function) bool {
	changed := false
	for {
		needed := neededNames(fn)
		removedThisRound := false
		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, ins := range b.Instrs {
				if hasEffect(ins) || (ins.Dest != "" && needed[ins.Dest]) {
					kept = append(kept, ins)
				} else {
					removedThisRound = true
				}
			}
			b.Instrs = kept
		}
		if !removedThisRound {
			break
		}
		changed = true
	}
	return changed
}

// hasEffect reports whether an instruction must be kept regardless of
// whether its result is read.
func hasEffect(ins *ir.Instruction) bool {
	switch ins.Op {
	case ir.OpPrint, ir.OpCall, ir.OpReturn, ir.OpJump, ir.OpBranch:
		return true
	}
	return false
}

// neededNames computes the transitive closure of names feeding effectful
// instructions, via a worklist over the producer map.
func neededNames(fn *ir.Function) map[string]bool {
	// Every producer of a name counts: a name reassigned in a loop body
	// keeps the inputs of all its definitions alive, not just the last.
	producers := make(map[string][]*ir.Instruction)
	needed := make(map[string]bool)
	var worklist []string

	mark := func(name string) {
		if !needed[name] {
			needed[name] = true
			worklist = append(worklist, name)
		}
	}

	for _, b := range fn.Blocks {
		for _, ins := range b.Instrs {
			if ins.Dest != "" {
				producers[ins.Dest] = append(producers[ins.Dest], ins)
			}
			if hasEffect(ins) {
				for _, use := range ins.Uses() {
					mark(use)
				}
			}
		}
	}

	for len(worklist) > 0 {
		name := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, producer := range producers[name] {
			for _, use := range producer.Uses() {
				mark(use)
			}
		}
	}
	return needed
}

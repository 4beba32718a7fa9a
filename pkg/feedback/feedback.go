// Package feedback implements profile-guided re-optimization: type
// specialization and inlining decisions driven by the counters a prior
// instrumented execution collected.
//
// The rewrites are one-way. A specialized instruction is not guarded
// and never reverts; if a later execution feeds it a type the profile
// never showed, the VM faults rather than deoptimizing.
package feedback

import (
	"fmt"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
	"github.com/Savani-Raj/minivm-plus/pkg/ir"
	"github.com/Savani-Raj/minivm-plus/pkg/optimizer"
	"github.com/Savani-Raj/minivm-plus/pkg/profile"
)

// Limits bounds the feedback stage's appetite.
type Limits struct {
	// InlineSizeLimit is the largest callee (total instruction count)
	// the inliner will copy into a call site.
	InlineSizeLimit int
}

// DefaultLimits returns the standard inlining bound.
func DefaultLimits() Limits {
	return Limits{InlineSizeLimit: 8}
}

// Optimizer rewrites IR under the guidance of a profile.
type Optimizer struct {
	Profile *profile.Profile
	Limits  Limits

	inlineSeq int // uniquifies names introduced by inlining
}

// New creates a feedback optimizer over a collected profile.
func New(prof *profile.Profile, limits Limits) *Optimizer {
	if limits.InlineSizeLimit <= 0 {
		limits = DefaultLimits()
	}
	return &Optimizer{Profile: prof, Limits: limits}
}

// Reoptimize returns a profile-guided re-optimization of prog: type
// specialization, inlining of hot small callees, then the full basic
// and advanced optimizer stages over the rewritten IR. The input
// program is never mutated.
func Reoptimize(prog *ir.Program, prof *profile.Profile, limits Limits, opts optimizer.Options) *ir.Program {
	o := New(prof, limits)
	out := prog.Clone()
	o.SpecializeTypes(out)
	o.InlineCalls(out)
	optimizer.Optimize(out, opts)
	return out
}

// ---------------------------------------------------------------------------
// Type specialization
// ---------------------------------------------------------------------------

// SpecializeTypes rewrites divisions whose operands the profile shows
// to be stably integer into the integer-specialized form. Reports
// whether anything changed.
func (o *Optimizer) SpecializeTypes(prog *ir.Program) bool {
	changed := false
	for _, fn := range prog.Funcs {
		intVars := make(map[string]bool)
		for name, kind := range o.Profile.MonomorphicVars(fn.Name) {
			if kind == bytecode.KindInt {
				intVars[name] = true
			}
		}
		for _, b := range fn.Blocks {
			for _, ins := range b.Instrs {
				if ins.Op != ir.OpDiv {
					continue
				}
				if stablyInt(ins.A, intVars) && stablyInt(ins.B, intVars) {
					ins.Op = ir.OpDivInt
					changed = true
				}
			}
		}
	}
	return changed
}

// stablyInt reports whether an operand is certainly an integer: a
// literal int, or a variable the profile observed as int only.
func stablyInt(o ir.Operand, intVars map[string]bool) bool {
	switch o.Kind {
	case ir.OperandInt:
		return true
	case ir.OperandName:
		return intVars[o.Name]
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Inlining
// ---------------------------------------------------------------------------

// InlineCalls replaces call sites whose callee is hot, small, and a
// leaf with the callee's body. Reports whether anything changed.
//
// The callee's names and labels are cloned under a fresh prefix, its
// parameters bound by movs, and each of its returns rewritten into a
// mov to the call's destination plus a jump to a continuation block
// holding the remainder of the caller's block.
func (o *Optimizer) InlineCalls(prog *ir.Program) bool {
	changed := false
	for _, fn := range prog.Funcs {
		for o.inlineOne(prog, fn) {
			changed = true
		}
	}
	return changed
}

// inlineOne finds and expands the first eligible call site in fn.
// Inlined bodies are leaves, so each expansion strictly reduces the
// number of eligible calls and the caller loop terminates.
func (o *Optimizer) inlineOne(prog *ir.Program, fn *ir.Function) bool {
	for bi, b := range fn.Blocks {
		for ii, ins := range b.Instrs {
			if ins.Op != ir.OpCall {
				continue
			}
			callee := prog.Function(ins.Callee)
			if !o.inlinable(callee, ins) {
				continue
			}
			o.expand(fn, bi, ii, ins, callee)
			return true
		}
	}
	return false
}

func (o *Optimizer) inlinable(callee *ir.Function, call *ir.Instruction) bool {
	if callee == nil || callee.Name == ir.MainName {
		return false
	}
	if !o.Profile.Hot(callee.Name) {
		return false
	}
	if callee.InstrCount() > o.Limits.InlineSizeLimit {
		return false
	}
	if len(call.Args) != len(callee.Params) {
		return false
	}
	for _, b := range callee.Blocks {
		for _, ins := range b.Instrs {
			switch ins.Op {
			case ir.OpCall:
				return false // only leaves, which also rules out recursion
			case ir.OpReturn:
				if call.Dest != "" && ins.A.IsNone() {
					return false // bare return cannot produce the call's value
				}
			}
		}
	}
	return true
}

// expand splices callee's body in place of the call at blocks[bi].Instrs[ii].
func (o *Optimizer) expand(fn *ir.Function, bi, ii int, call *ir.Instruction, callee *ir.Function) {
	o.inlineSeq++
	prefix := fmt.Sprintf("__inl%d_", o.inlineSeq)
	contLabel := prefix + "cont"

	// Clone and rename the callee body. A return is always the last
	// instruction of its block; rewrite it into a mov to the call's
	// destination plus a jump to the continuation.
	body := make([]*ir.BasicBlock, len(callee.Blocks))
	for i, cb := range callee.Blocks {
		nb := cb.Clone()
		nb.Label = prefix + nb.Label
		for _, ins := range nb.Instrs {
			renameInstr(ins, prefix)
		}
		if last := len(nb.Instrs) - 1; last >= 0 && nb.Instrs[last].Op == ir.OpReturn {
			ret := nb.Instrs[last].A
			tail := []*ir.Instruction{ir.NewJump(contLabel)}
			if call.Dest != "" {
				tail = []*ir.Instruction{ir.NewMov(call.Dest, ret), ir.NewJump(contLabel)}
			}
			nb.Instrs = append(nb.Instrs[:last], tail...)
		}
		body[i] = nb
	}

	site := fn.Blocks[bi]

	// Continuation block takes everything after the call.
	cont := ir.NewBlock(contLabel)
	cont.Instrs = append(cont.Instrs, site.Instrs[ii+1:]...)

	// The call becomes parameter bindings plus a jump into the body.
	head := site.Instrs[:ii:ii]
	for pi, param := range callee.Params {
		head = append(head, ir.NewMov(prefix+param, call.Args[pi]))
	}
	head = append(head, ir.NewJump(prefix+callee.Blocks[0].Label))
	site.Instrs = head

	// Splice: site, body blocks, continuation, rest of the function.
	rest := append([]*ir.BasicBlock{}, fn.Blocks[bi+1:]...)
	fn.Blocks = append(fn.Blocks[:bi+1], body...)
	fn.Blocks = append(fn.Blocks, cont)
	fn.Blocks = append(fn.Blocks, rest...)
}

// renameInstr prefixes every name and label the instruction touches.
func renameInstr(ins *ir.Instruction, prefix string) {
	if ins.Dest != "" {
		ins.Dest = prefix + ins.Dest
	}
	ins.A = renameOperand(ins.A, prefix)
	ins.B = renameOperand(ins.B, prefix)
	for i, arg := range ins.Args {
		ins.Args[i] = renameOperand(arg, prefix)
	}
	if ins.Target != "" {
		ins.Target = prefix + ins.Target
	}
	if ins.Then != "" {
		ins.Then = prefix + ins.Then
	}
	if ins.Else != "" {
		ins.Else = prefix + ins.Else
	}
}

func renameOperand(o ir.Operand, prefix string) ir.Operand {
	if o.IsName() {
		o.Name = prefix + o.Name
	}
	return o
}

package ir

import "fmt"

// MalformedIRError reports a structural invariant violation found while
// constructing or validating IR. It is fatal: nothing downstream of the
// IR model runs on a malformed program.
type MalformedIRError struct {
	Func   string
	Block  string
	Index  int
	Reason string
}

func (e *MalformedIRError) Error() string {
	loc := ""
	if e.Func != "" {
		loc = e.Func
	}
	if e.Block != "" {
		loc += "." + e.Block
		loc += fmt.Sprintf("[%d]", e.Index)
	}
	if loc != "" {
		return fmt.Sprintf("malformed IR at %s: %s", loc, e.Reason)
	}
	return fmt.Sprintf("malformed IR: %s", e.Reason)
}

// Validate checks the structural invariants of the whole program:
//
//   - every named operand has a prior definition in program order
//     (parameters count as definitions at function entry)
//   - control transfers appear only as the last instruction of a block
//   - branch and jump targets name blocks of the same function
//   - call targets name functions of the program
//
// The first violation found is returned as a *MalformedIRError.
func Validate(p *Program) error {
	if p.Function(MainName) == nil {
		return &MalformedIRError{Reason: "no main function"}
	}
	for _, f := range p.Funcs {
		if err := validateFunction(p, f); err != nil {
			return err
		}
	}
	return nil
}

func validateFunction(p *Program, f *Function) error {
	if len(f.Blocks) == 0 {
		return &MalformedIRError{Func: f.Name, Reason: "function has no blocks"}
	}

	labels := make(map[string]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		if labels[b.Label] {
			return &MalformedIRError{Func: f.Name, Block: b.Label, Reason: "duplicate block label"}
		}
		labels[b.Label] = true
	}

	defined := make(map[string]bool, len(f.Params))
	for _, param := range f.Params {
		defined[param] = true
	}

	for _, b := range f.Blocks {
		for idx, ins := range b.Instrs {
			if ins.Op.IsTerminator() && idx != len(b.Instrs)-1 {
				return &MalformedIRError{
					Func: f.Name, Block: b.Label, Index: idx,
					Reason: fmt.Sprintf("control transfer %q before end of block", ins),
				}
			}
			for _, use := range ins.Uses() {
				if !defined[use] {
					return &MalformedIRError{
						Func: f.Name, Block: b.Label, Index: idx,
						Reason: fmt.Sprintf("use of %q with no prior definition", use),
					}
				}
			}
			switch ins.Op {
			case OpConst:
				if !ins.A.IsConst() {
					return &MalformedIRError{
						Func: f.Name, Block: b.Label, Index: idx,
						Reason: "const instruction without literal operand",
					}
				}
			case OpJump:
				if !labels[ins.Target] {
					return &MalformedIRError{
						Func: f.Name, Block: b.Label, Index: idx,
						Reason: fmt.Sprintf("jump to unknown block %q", ins.Target),
					}
				}
			case OpBranch:
				if !labels[ins.Then] || !labels[ins.Else] {
					return &MalformedIRError{
						Func: f.Name, Block: b.Label, Index: idx,
						Reason: fmt.Sprintf("branch to unknown block (%q / %q)", ins.Then, ins.Else),
					}
				}
			case OpCall:
				if p.Function(ins.Callee) == nil {
					return &MalformedIRError{
						Func: f.Name, Block: b.Label, Index: idx,
						Reason: fmt.Sprintf("call to unknown function %q", ins.Callee),
					}
				}
			}
			if ins.Dest != "" {
				defined[ins.Dest] = true
			}
		}
	}
	return nil
}

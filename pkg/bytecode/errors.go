package bytecode

import "fmt"

// UnresolvedReferenceError reports a dangling operand found during
// lowering: an instruction refers to a value or block that no longer has
// a definition. It indicates an optimizer bug and is fatal.
type UnresolvedReferenceError struct {
	Function string
	Name     string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q in function %q", e.Name, e.Function)
}

// FaultKind classifies a runtime fault.
type FaultKind int

const (
	FaultStackUnderflow FaultKind = iota
	FaultDivisionByZero
	FaultUnknownOpcode
	FaultUndefinedFunction
	FaultUndefinedVariable
	FaultTypeMismatch
	FaultBadOperand
)

// String returns the fault name used in error messages.
func (k FaultKind) String() string {
	switch k {
	case FaultStackUnderflow:
		return "stack underflow"
	case FaultDivisionByZero:
		return "division by zero"
	case FaultUnknownOpcode:
		return "unknown opcode"
	case FaultUndefinedFunction:
		return "undefined function"
	case FaultUndefinedVariable:
		return "undefined variable"
	case FaultTypeMismatch:
		return "type mismatch"
	case FaultBadOperand:
		return "bad operand"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// RuntimeFault halts execution immediately. It carries the failing
// instruction's location; state mutations applied before the fault are
// not rolled back.
type RuntimeFault struct {
	Kind     FaultKind
	Function string
	PC       int
	Detail   string
}

func (e *RuntimeFault) Error() string {
	msg := fmt.Sprintf("runtime fault: %s at %s+%04d", e.Kind, e.Function, e.PC)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

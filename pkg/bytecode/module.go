// Package bytecode provides the executable form of an optimized program:
// a linear instruction stream per function with a shared, deduplicated
// constant pool, plus the stack-based virtual machine that runs it.
//
// The format is designed for:
//   - Compact representation (1-4 bytes per instruction)
//   - Fast decoding (fixed-width opcodes, big-endian u16 operands)
//   - Easy serialization (CBOR image with a magic/version header)
//
// Lowering is a pure, one-shot translation from IR: no optimization
// decisions are made here, and a dangling operand is an optimizer bug
// surfaced as *UnresolvedReferenceError.
package bytecode

import "encoding/binary"

// Function is the lowered form of one IR function: a linear code section
// with resolved absolute jump offsets.
type Function struct {
	Name   string   `cbor:"1,keyasint"`
	Params []string `cbor:"2,keyasint"`
	Code   []byte   `cbor:"3,keyasint"`
}

// Emit appends a single-byte opcode and returns its offset.
func (f *Function) Emit(op Opcode) int {
	offset := len(f.Code)
	f.Code = append(f.Code, byte(op))
	return offset
}

// EmitU16 appends an opcode with one big-endian u16 operand.
func (f *Function) EmitU16(op Opcode, operand uint16) int {
	offset := f.Emit(op)
	f.Code = binary.BigEndian.AppendUint16(f.Code, operand)
	return offset
}

// EmitJump appends a jump with a placeholder target and returns the
// offset of the placeholder for later patching.
func (f *Function) EmitJump(op Opcode) int {
	f.Emit(op)
	placeholder := len(f.Code)
	f.Code = append(f.Code, 0xFF, 0xFF)
	return placeholder
}

// PatchJumpTo writes an absolute target into a jump placeholder.
func (f *Function) PatchJumpTo(placeholder, target int) {
	binary.BigEndian.PutUint16(f.Code[placeholder:], uint16(target))
}

// CurrentOffset returns the offset the next emitted instruction gets.
func (f *Function) CurrentOffset() int {
	return len(f.Code)
}

// Module is the complete lowered program: functions by name plus the
// shared constant pool and interned identifier table. A module is
// immutable once lowering returns it.
type Module struct {
	Order     []string             `cbor:"1,keyasint"` // function layout order
	Functions map[string]*Function `cbor:"2,keyasint"`
	Constants []Value              `cbor:"3,keyasint"`
	Names     []string             `cbor:"4,keyasint"` // interned variable/function/block names
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{Functions: make(map[string]*Function)}
}

// AddFunction registers a lowered function, preserving layout order.
func (m *Module) AddFunction(f *Function) {
	m.Order = append(m.Order, f.Name)
	m.Functions[f.Name] = f
}

// AddConstant adds a value to the pool, deduplicating, and returns its
// index.
func (m *Module) AddConstant(v Value) uint16 {
	for i, existing := range m.Constants {
		if existing == v {
			return uint16(i)
		}
	}
	idx := uint16(len(m.Constants))
	m.Constants = append(m.Constants, v)
	return idx
}

// InternName adds an identifier to the name table, deduplicating, and
// returns its index.
func (m *Module) InternName(name string) uint16 {
	for i, existing := range m.Names {
		if existing == name {
			return uint16(i)
		}
	}
	idx := uint16(len(m.Names))
	m.Names = append(m.Names, name)
	return idx
}

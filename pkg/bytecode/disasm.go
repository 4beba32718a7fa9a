package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the whole module:
// constant pool, name table, and one section per function in layout
// order.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	if len(m.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range m.Constants {
			fmt.Fprintf(&sb, ";   [%d] %s\n", i, v)
		}
	}
	if len(m.Names) > 0 {
		sb.WriteString("; Names:\n")
		for i, n := range m.Names {
			fmt.Fprintf(&sb, ";   [%d] %s\n", i, n)
		}
	}

	for _, name := range m.Order {
		sb.WriteString("\n")
		sb.WriteString(m.DisassembleFunction(name))
	}
	return sb.String()
}

// DisassembleFunction returns the listing for one function.
func (m *Module) DisassembleFunction(name string) string {
	f, ok := m.Functions[name]
	if !ok {
		return fmt.Sprintf("; unknown function %q\n", name)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "; === %s(%s) ===\n", f.Name, strings.Join(f.Params, ", "))

	for offset := 0; offset < len(f.Code); {
		op := Opcode(f.Code[offset])
		info := GetOpcodeInfo(op)
		fmt.Fprintf(&sb, "%04d  %-12s", offset, info.Name)
		offset++

		switch op {
		case OpConst:
			idx := binary.BigEndian.Uint16(f.Code[offset:])
			fmt.Fprintf(&sb, " %d", idx)
			if int(idx) < len(m.Constants) {
				fmt.Fprintf(&sb, " ; %s", m.Constants[idx])
			}
			offset += 2
		case OpLoadVar, OpStoreVar, OpEnterBlock:
			idx := binary.BigEndian.Uint16(f.Code[offset:])
			fmt.Fprintf(&sb, " %d", idx)
			if int(idx) < len(m.Names) {
				fmt.Fprintf(&sb, " ; %s", m.Names[idx])
			}
			offset += 2
		case OpJump, OpJumpFalse:
			target := binary.BigEndian.Uint16(f.Code[offset:])
			fmt.Fprintf(&sb, " -> %04d", target)
			offset += 2
		case OpCall:
			idx := binary.BigEndian.Uint16(f.Code[offset:])
			argc := f.Code[offset+2]
			fmt.Fprintf(&sb, " %d argc=%d", idx, argc)
			if int(idx) < len(m.Names) {
				fmt.Fprintf(&sb, " ; %s", m.Names[idx])
			}
			offset += 3
		default:
			offset += info.OperandBytes
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpPop  Opcode = 0x01 // Pop top of stack
	OpHalt Opcode = 0x02 // Stop execution; top of stack is the result

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst    Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpConstNil Opcode = 0x11 // Push nil

	// ========================================================================
	// Variables (0x20-0x2F)
	// ========================================================================

	OpLoadVar  Opcode = 0x20 // Push variable: OpLoadVar <name:u16>
	OpStoreVar Opcode = 0x21 // Pop and store to variable: OpStoreVar <name:u16>

	// ========================================================================
	// Arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd    Opcode = 0x30 // Pop two, push sum
	OpSub    Opcode = 0x31 // Pop two, push difference (a - b where b is TOS)
	OpMul    Opcode = 0x32 // Pop two, push product
	OpDiv    Opcode = 0x33 // Pop two, push quotient (tag-dispatched)
	OpDivInt Opcode = 0x34 // Integer-specialized floored division
	OpShl    Opcode = 0x35 // Pop two ints, push a << b
	OpShr    Opcode = 0x36 // Pop two ints, push a >> b
	OpNeg    Opcode = 0x37 // Negate top of stack

	// ========================================================================
	// Comparison (0x40-0x4F)
	// ========================================================================

	OpEq Opcode = 0x40 // Pop two, push true if equal
	OpNe Opcode = 0x41 // Pop two, push true if not equal
	OpLt Opcode = 0x42 // Pop two, push true if a < b
	OpLe Opcode = 0x43 // Pop two, push true if a <= b
	OpGt Opcode = 0x44 // Pop two, push true if a > b
	OpGe Opcode = 0x45 // Pop two, push true if a >= b

	// ========================================================================
	// Control flow (0x50-0x5F)
	// ========================================================================

	OpJump      Opcode = 0x50 // Jump to absolute offset: OpJump <target:u16>
	OpJumpFalse Opcode = 0x51 // Pop; jump if false: OpJumpFalse <target:u16>

	// ========================================================================
	// Calls (0x60-0x6F)
	// ========================================================================

	OpCall      Opcode = 0x60 // Call function: OpCall <name:u16> <argc:u8>
	OpReturn    Opcode = 0x61 // Pop result, pop frame, resume caller
	OpReturnNil Opcode = 0x62 // Return nil

	// ========================================================================
	// Effects and instrumentation (0x70-0x7F)
	// ========================================================================

	OpPrint      Opcode = 0x70 // Pop and print
	OpEnterBlock Opcode = 0x71 // Block entry marker: OpEnterBlock <label:u16>
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string
	OperandBytes int
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop:  {"NOP", 0},
	OpPop:  {"POP", 0},
	OpHalt: {"HALT", 0},

	OpConst:    {"CONST", 2},
	OpConstNil: {"CONST_NIL", 0},

	OpLoadVar:  {"LOAD_VAR", 2},
	OpStoreVar: {"STORE_VAR", 2},

	OpAdd:    {"ADD", 0},
	OpSub:    {"SUB", 0},
	OpMul:    {"MUL", 0},
	OpDiv:    {"DIV", 0},
	OpDivInt: {"DIV_INT", 0},
	OpShl:    {"SHL", 0},
	OpShr:    {"SHR", 0},
	OpNeg:    {"NEG", 0},

	OpEq: {"EQ", 0},
	OpNe: {"NE", 0},
	OpLt: {"LT", 0},
	OpLe: {"LE", 0},
	OpGt: {"GT", 0},
	OpGe: {"GE", 0},

	OpJump:      {"JUMP", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},

	OpCall:      {"CALL", 3},
	OpReturn:    {"RETURN", 0},
	OpReturnNil: {"RETURN_NIL", 0},

	OpPrint:      {"PRINT", 0},
	OpEnterBlock: {"ENTER_BLOCK", 2},
}

// GetOpcodeInfo returns metadata for an opcode.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), OperandBytes: 0}
}

// IsValidOpcode reports whether op is a defined instruction.
func IsValidOpcode(op Opcode) bool {
	_, ok := opcodeTable[op]
	return ok
}

package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded instruction. Operands aliases the code slice it was
// decoded from.
type Instruction struct {
	PC       int
	Op       byte
	Operands []byte
}

// Len returns the encoded length of the instruction including the opcode byte.
func (in Instruction) Len() int {
	return 1 + len(in.Operands)
}

// Name returns the instruction mnemonic.
func (in Instruction) Name() string {
	return Name(in.Op)
}

// Slot returns the constant pool slot encoded by the instruction, if it has one.
func (in Instruction) Slot() (uint16, bool) {
	switch opTable[in.Op].operand {
	case OperandMember, OperandClass, OperandDynamic:
		return binary.BigEndian.Uint16(in.Operands), true
	case OperandConstant:
		if in.Op == OpLdc {
			return uint16(in.Operands[0]), true
		}
		return binary.BigEndian.Uint16(in.Operands), true
	}
	return 0, false
}

// ArrayType returns the newarray element type code.
func (in Instruction) ArrayType() (byte, bool) {
	if in.Op != OpNewarray {
		return 0, false
	}
	return in.Operands[0], true
}

// Length returns the length of the instruction starting at pc.
func Length(code []byte, pc int) (int, error) {
	if pc < 0 || pc >= len(code) {
		return 0, fmt.Errorf("pc %d out of range (code length %d)", pc, len(code))
	}
	op := code[pc]
	info := opTable[op]
	switch {
	case info.length < 0:
		return 0, fmt.Errorf("undefined opcode 0x%02X at pc %d", op, pc)
	case info.length > 0:
		return info.length, nil
	}

	switch op {
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		if code[pc+1] == OpIinc {
			return 6, nil
		}
		return 4, nil
	case OpTableswitch, OpLookupswitch:
		// operands are 4-byte aligned relative to the start of the code
		pad := (4 - (pc+1)%4) % 4
		base := pc + 1 + pad
		if base+12 > len(code) {
			return 0, fmt.Errorf("truncated %s at pc %d", info.name, pc)
		}
		if op == OpTableswitch {
			low := int32(binary.BigEndian.Uint32(code[base+4:]))
			high := int32(binary.BigEndian.Uint32(code[base+8:]))
			if high < low {
				return 0, fmt.Errorf("tableswitch at pc %d: high %d < low %d", pc, high, low)
			}
			return 1 + pad + 12 + 4*int(high-low+1), nil
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d: negative npairs", pc)
		}
		return 1 + pad + 8 + 8*int(npairs), nil
	}
	return 0, fmt.Errorf("unhandled variable-length opcode 0x%02X", op)
}

// Decode walks code and calls fn for each instruction in order. It stops at the
// first error returned by fn.
func Decode(code []byte, fn func(Instruction) error) error {
	for pc := 0; pc < len(code); {
		n, err := Length(code, pc)
		if err != nil {
			return err
		}
		if pc+n > len(code) {
			return fmt.Errorf("truncated %s at pc %d", Name(code[pc]), pc)
		}
		if err := fn(Instruction{PC: pc, Op: code[pc], Operands: code[pc+1 : pc+n]}); err != nil {
			return err
		}
		pc += n
	}
	return nil
}

// DecodeAll returns every instruction in code.
func DecodeAll(code []byte) ([]Instruction, error) {
	var out []Instruction
	err := Decode(code, func(in Instruction) error {
		out = append(out, in)
		return nil
	})
	return out, err
}

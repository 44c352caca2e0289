package bytecode

import (
	"encoding/binary"
	"fmt"
)

// SlotMapper maps a raw member reference slot to its compacted index.
type SlotMapper func(slot uint16) (uint16, error)

// RewriteMemberSlots returns a copy of code where the slot operand of every field
// and method instruction has been replaced through remap. Every other byte is
// copied unchanged. code itself is never modified.
func RewriteMemberSlots(code []byte, remap SlotMapper) ([]byte, error) {
	out := make([]byte, len(code))
	copy(out, code)
	err := Decode(code, func(in Instruction) error {
		if OperandOf(in.Op) != OperandMember {
			return nil
		}
		slot, _ := in.Slot()
		mapped, err := remap(slot)
		if err != nil {
			return fmt.Errorf("%s at pc %d: %w", in.Name(), in.PC, err)
		}
		binary.BigEndian.PutUint16(out[in.PC+1:], mapped)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendInvokestatic appends an invokestatic of slot to buf.
func AppendInvokestatic(buf []byte, slot uint16) []byte {
	return append(buf, OpInvokestatic, byte(slot>>8), byte(slot))
}

// Package bytecode decodes and rewrites JVM instruction streams.
package bytecode

// Opcodes
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpIconstM1        = 0x02
	OpIconst0         = 0x03
	OpIconst1         = 0x04
	OpIconst2         = 0x05
	OpIconst3         = 0x06
	OpIconst4         = 0x07
	OpIconst5         = 0x08
	OpLconst0         = 0x09
	OpLconst1         = 0x0A
	OpFconst0         = 0x0B
	OpFconst1         = 0x0C
	OpFconst2         = 0x0D
	OpDconst0         = 0x0E
	OpDconst1         = 0x0F
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpLload           = 0x16
	OpFload           = 0x17
	OpDload           = 0x18
	OpAload           = 0x19
	OpIload0          = 0x1A
	OpAload3          = 0x2D
	OpIaload          = 0x2E
	OpLaload          = 0x2F
	OpFaload          = 0x30
	OpDaload          = 0x31
	OpAaload          = 0x32
	OpBaload          = 0x33
	OpCaload          = 0x34
	OpSaload          = 0x35
	OpIstore          = 0x36
	OpLstore          = 0x37
	OpFstore          = 0x38
	OpDstore          = 0x39
	OpAstore          = 0x3A
	OpIstore0         = 0x3B
	OpAstore3         = 0x4E
	OpIastore         = 0x4F
	OpLastore         = 0x50
	OpFastore         = 0x51
	OpDastore         = 0x52
	OpAastore         = 0x53
	OpBastore         = 0x54
	OpCastore         = 0x55
	OpSastore         = 0x56
	OpPop             = 0x57
	OpPop2            = 0x58
	OpDup             = 0x59
	OpSwap            = 0x5F
	OpIadd            = 0x60
	OpIdiv            = 0x6C
	OpLdiv            = 0x6D
	OpIrem            = 0x70
	OpLrem            = 0x71
	OpIinc            = 0x84
	OpLcmp            = 0x94
	OpIfeq            = 0x99
	OpIfAcmpne        = 0xA6
	OpGoto            = 0xA7
	OpJsr             = 0xA8
	OpRet             = 0xA9
	OpTableswitch     = 0xAA
	OpLookupswitch    = 0xAB
	OpIreturn         = 0xAC
	OpLreturn         = 0xAD
	OpFreturn         = 0xAE
	OpDreturn         = 0xAF
	OpAreturn         = 0xB0
	OpReturn          = 0xB1
	OpGetstatic       = 0xB2
	OpPutstatic       = 0xB3
	OpGetfield        = 0xB4
	OpPutfield        = 0xB5
	OpInvokevirtual   = 0xB6
	OpInvokespecial   = 0xB7
	OpInvokestatic    = 0xB8
	OpInvokeinterface = 0xB9
	OpInvokedynamic   = 0xBA
	OpNew             = 0xBB
	OpNewarray        = 0xBC
	OpAnewarray       = 0xBD
	OpArraylength     = 0xBE
	OpAthrow          = 0xBF
	OpCheckcast       = 0xC0
	OpInstanceof      = 0xC1
	OpMonitorenter    = 0xC2
	OpMonitorexit     = 0xC3
	OpWide            = 0xC4
	OpMultianewarray  = 0xC5
	OpIfnull          = 0xC6
	OpIfnonnull       = 0xC7
	OpGotoW           = 0xC8
	OpJsrW            = 0xC9
)

// Operand describes what an instruction's operand bytes refer to.
type Operand int

const (
	OperandNone     Operand = iota
	OperandMember           // u2 slot of a field or method reference
	OperandClass            // u2 slot of a class reference
	OperandConstant         // u1 or u2 slot of a loadable constant
	OperandArrayType        // u1 primitive array type code
	OperandDynamic          // u2 slot of an invokedynamic call site
)

type opInfo struct {
	name    string
	length  int // 0 for variable length, -1 for undefined
	operand Operand
}

var opTable [256]opInfo

func init() {
	for i := range opTable {
		opTable[i] = opInfo{length: -1}
	}
	simple := func(op int, name string) { opTable[op] = opInfo{name: name, length: 1} }
	sized := func(op int, name string, n int, kind Operand) { opTable[op] = opInfo{name: name, length: n, operand: kind} }

	names1 := []string{
		"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3",
		"iconst_4", "iconst_5", "lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2",
		"dconst_0", "dconst_1",
	}
	for i, n := range names1 {
		simple(i, n)
	}
	sized(OpBipush, "bipush", 2, OperandNone)
	sized(OpSipush, "sipush", 3, OperandNone)
	sized(OpLdc, "ldc", 2, OperandConstant)
	sized(OpLdcW, "ldc_w", 3, OperandConstant)
	sized(OpLdc2W, "ldc2_w", 3, OperandConstant)

	typed := []string{"i", "l", "f", "d", "a"}
	for i, p := range typed {
		sized(OpIload+i, p+"load", 2, OperandNone)
		sized(OpIstore+i, p+"store", 2, OperandNone)
		for n := 0; n < 4; n++ {
			simple(OpIload0+i*4+n, p+"load_"+string(rune('0'+n)))
			simple(OpIstore0+i*4+n, p+"store_"+string(rune('0'+n)))
		}
	}
	arrays := []string{"i", "l", "f", "d", "a", "b", "c", "s"}
	for i, p := range arrays {
		simple(OpIaload+i, p+"aload")
		simple(OpIastore+i, p+"astore")
	}
	stack := []string{"pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap"}
	for i, n := range stack {
		simple(OpPop+i, n)
	}
	arith := []string{
		"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
		"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
		"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
		"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land",
		"ior", "lor", "ixor", "lxor",
	}
	for i, n := range arith {
		simple(OpIadd+i, n)
	}
	sized(OpIinc, "iinc", 3, OperandNone)
	conv := []string{
		"i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l", "d2f",
		"i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg",
	}
	for i, n := range conv {
		simple(0x85+i, n)
	}
	branches := []string{
		"ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle", "if_icmpeq", "if_icmpne",
		"if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne",
		"goto", "jsr",
	}
	for i, n := range branches {
		sized(OpIfeq+i, n, 3, OperandNone)
	}
	sized(OpRet, "ret", 2, OperandNone)
	sized(OpTableswitch, "tableswitch", 0, OperandNone)
	sized(OpLookupswitch, "lookupswitch", 0, OperandNone)
	returns := []string{"ireturn", "lreturn", "freturn", "dreturn", "areturn", "return"}
	for i, n := range returns {
		simple(OpIreturn+i, n)
	}
	sized(OpGetstatic, "getstatic", 3, OperandMember)
	sized(OpPutstatic, "putstatic", 3, OperandMember)
	sized(OpGetfield, "getfield", 3, OperandMember)
	sized(OpPutfield, "putfield", 3, OperandMember)
	sized(OpInvokevirtual, "invokevirtual", 3, OperandMember)
	sized(OpInvokespecial, "invokespecial", 3, OperandMember)
	sized(OpInvokestatic, "invokestatic", 3, OperandMember)
	sized(OpInvokeinterface, "invokeinterface", 5, OperandMember)
	sized(OpInvokedynamic, "invokedynamic", 5, OperandDynamic)
	sized(OpNew, "new", 3, OperandClass)
	sized(OpNewarray, "newarray", 2, OperandArrayType)
	sized(OpAnewarray, "anewarray", 3, OperandClass)
	simple(OpArraylength, "arraylength")
	simple(OpAthrow, "athrow")
	sized(OpCheckcast, "checkcast", 3, OperandClass)
	sized(OpInstanceof, "instanceof", 3, OperandClass)
	simple(OpMonitorenter, "monitorenter")
	simple(OpMonitorexit, "monitorexit")
	sized(OpWide, "wide", 0, OperandNone)
	sized(OpMultianewarray, "multianewarray", 4, OperandClass)
	sized(OpIfnull, "ifnull", 3, OperandNone)
	sized(OpIfnonnull, "ifnonnull", 3, OperandNone)
	sized(OpGotoW, "goto_w", 5, OperandNone)
	sized(OpJsrW, "jsr_w", 5, OperandNone)
}

// Name returns the mnemonic of op, or "" for an undefined opcode.
func Name(op byte) string {
	return opTable[op].name
}

// OperandOf returns the operand kind of op.
func OperandOf(op byte) Operand {
	return opTable[op].operand
}

// Defined reports whether op is a defined opcode.
func Defined(op byte) bool {
	return opTable[op].length >= 0
}

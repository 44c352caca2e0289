package bytecode

import "github.com/daimatz/jvmlink/pkg/builtin"

var (
	arrayAccess = []builtin.ID{builtin.NullPointerInit, builtin.ArrayIndexInit}
	nullCheck   = []builtin.ID{builtin.NullPointerInit}
	arithmetic  = []builtin.ID{builtin.ArithmeticInit}
	allocation  = []builtin.ID{builtin.OutOfMemoryInit}
	arrayAlloc  = []builtin.ID{builtin.NegativeArraySizeInit, builtin.OutOfMemoryInit}
	classCast   = []builtin.ID{builtin.ClassCastInit}
)

// Triggers returns the catalog entries the runtime may construct while executing
// op. The returned slice must not be modified.
func Triggers(op byte) []builtin.ID {
	switch {
	case op >= OpIaload && op <= OpSaload, op >= OpIastore && op <= OpSastore:
		return arrayAccess
	}
	switch op {
	case OpGetfield, OpPutfield, OpInvokevirtual, OpInvokespecial, OpInvokeinterface,
		OpArraylength, OpAthrow, OpMonitorenter, OpMonitorexit:
		return nullCheck
	case OpIdiv, OpIrem, OpLdiv, OpLrem:
		return arithmetic
	case OpNew:
		return allocation
	case OpNewarray, OpAnewarray, OpMultianewarray:
		return arrayAlloc
	case OpCheckcast:
		return classCast
	}
	return nil
}

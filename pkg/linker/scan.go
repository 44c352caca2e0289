package linker

import (
	"fmt"

	"github.com/daimatz/jvmlink/pkg/bytecode"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// scan records on meth every reference its code, exception table and throws
// clause depend on, and the builtin entries its instructions may trigger.
func (l *Linker) scan(c *linkmodel.Class, meth *linkmodel.Method, throws []int) error {
	classRef := func(slot int) (*linkmodel.ClassRef, error) {
		r, ok := l.model.Ref(c.ID(), slot)
		if !ok {
			return nil, fmt.Errorf("pool slot %d is not a loadable entry", slot)
		}
		cr, ok := r.(*linkmodel.ClassRef)
		if !ok {
			return nil, fmt.Errorf("pool slot %d is not a class reference", slot)
		}
		return cr, nil
	}

	err := bytecode.Decode(meth.RawCode(), func(in bytecode.Instruction) error {
		for _, id := range bytecode.Triggers(in.Op) {
			meth.AddBuiltin(id)
		}
		slot, _ := in.Slot()
		switch bytecode.OperandOf(in.Op) {
		case bytecode.OperandMember:
			r, ok := l.model.Ref(c.ID(), int(slot))
			mr, isMember := r.(*linkmodel.MemberRef)
			if !ok || !isMember {
				return fmt.Errorf("%s at pc %d: pool slot %d is not a member reference", in.Name(), in.PC, slot)
			}
			meth.AddMemberRef(mr)
		case bytecode.OperandClass:
			cr, err := classRef(int(slot))
			if err != nil {
				return fmt.Errorf("%s at pc %d: %w", in.Name(), in.PC, err)
			}
			meth.AddClassDep(cr)
			if in.Op == bytecode.OpAnewarray {
				ar, err := l.arrayRef(c, ArrayOf(cr.Target))
				if err != nil {
					return err
				}
				meth.AddClassDep(ar)
			}
		case bytecode.OperandConstant:
			r, ok := l.model.Ref(c.ID(), int(slot))
			if !ok {
				return fmt.Errorf("%s at pc %d: pool slot %d is not a loadable entry", in.Name(), in.PC, slot)
			}
			switch r := r.(type) {
			case *linkmodel.ConstantRef:
				meth.AddConstant(r)
			case *linkmodel.ClassRef:
				meth.AddClassDep(r)
			case *linkmodel.MemberRef:
				return fmt.Errorf("%s at pc %d: pool slot %d is a member reference", in.Name(), in.PC, slot)
			}
		case bytecode.OperandArrayType:
			code, _ := in.ArrayType()
			t := linkmodel.ArrayType(code)
			if !t.Valid() {
				return fmt.Errorf("newarray at pc %d: unknown element type %d", in.PC, code)
			}
			meth.AddArrayDep(t)
		case bytecode.OperandDynamic:
			return fmt.Errorf("%s at pc %d: dynamic call sites are not supported", in.Name(), in.PC)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, h := range meth.Handlers() {
		if h.CatchSlot == 0 {
			continue
		}
		cr, err := classRef(h.CatchSlot)
		if err != nil {
			return fmt.Errorf("exception handler: %w", err)
		}
		meth.AddClassDep(cr)
	}
	for _, slot := range throws {
		cr, err := classRef(slot)
		if err != nil {
			return fmt.Errorf("throws clause: %w", err)
		}
		meth.AddClassDep(cr)
	}
	return nil
}

// arrayRef returns a class reference from c to an array class that appears in
// no pool entry, allocating a slot above the class file's pool on first use.
func (l *Linker) arrayRef(c *linkmodel.Class, name string) (*linkmodel.ClassRef, error) {
	key := arrayRefKey{owner: c.ID(), name: name}
	if r, ok := l.arrayRefs[key]; ok {
		return r, nil
	}
	slot, err := l.model.AllocSlot(c)
	if err != nil {
		return nil, err
	}
	r, err := l.model.CreateClassRef(c, slot, name)
	if err != nil {
		return nil, err
	}
	l.arrayRefs[key] = r
	return r, nil
}

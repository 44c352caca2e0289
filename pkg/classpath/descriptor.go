// Package classpath locates class files and turns them into the normalized
// descriptors the linker consumes.
package classpath

import (
	"fmt"

	"github.com/daimatz/jvmlink/pkg/classfile"
)

// PoolKind classifies a constant pool entry the linker cares about.
type PoolKind int

const (
	PoolClass PoolKind = iota + 1
	PoolMember
	PoolInt
	PoolFloat
	PoolLong
	PoolDouble
	PoolString
)

func (k PoolKind) String() string {
	switch k {
	case PoolClass:
		return "class"
	case PoolMember:
		return "member"
	case PoolInt:
		return "int"
	case PoolFloat:
		return "float"
	case PoolLong:
		return "long"
	case PoolDouble:
		return "double"
	case PoolString:
		return "string"
	}
	return fmt.Sprintf("PoolKind(%d)", int(k))
}

// PoolEntry is one typed constant pool entry. Utf8, NameAndType and the
// invokedynamic family are not carried over.
type PoolEntry struct {
	Slot int
	Kind PoolKind
	// Class is the class name for PoolClass and the owner for PoolMember.
	Class      string
	Name       string
	Descriptor string
	Field      bool
	// Value is int32, float32, int64, float64 or string.
	Value any
}

// Field is a declared field.
type Field struct {
	Name       string
	Descriptor string
	Static     bool
	Size       int
}

// Line maps a method-relative pc to a source line.
type Line struct {
	PC   int
	Line int
}

// Handler is an exception table entry. CatchSlot 0 catches everything.
type Handler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchSlot int
}

// Method is a declared method.
type Method struct {
	Name       string
	Descriptor string
	Static     bool
	Native     bool
	Abstract   bool
	Code       []byte
	MaxLocals  int
	ArgSlots   int
	Lines      []Line
	Handlers   []Handler
	// Throws holds the pool slots of the declared thrown classes.
	Throws []int
}

// Descriptor is the normalized view of one class file.
type Descriptor struct {
	Name       string
	Super      string
	Interface  bool
	Interfaces []string
	Fields     []Field
	Methods    []Method
	Pool       []PoolEntry
	// PoolSize is the constant_pool_count of the class file.
	PoolSize int
}

// Normalize converts a parsed class file into a Descriptor.
func Normalize(cf *classfile.ClassFile) (*Descriptor, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("resolving this_class: %w", err)
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("%s: resolving interfaces: %w", name, err)
	}
	d := &Descriptor{
		Name:       name,
		Super:      cf.SuperClassName(),
		Interface:  cf.IsInterface(),
		Interfaces: ifaces,
		PoolSize:   len(cf.ConstantPool),
	}

	for i, e := range cf.ConstantPool {
		if e == nil {
			continue
		}
		slot := uint16(i)
		pe := PoolEntry{Slot: i}
		switch c := e.(type) {
		case *classfile.ConstantClass:
			pe.Kind = PoolClass
			if pe.Class, err = classfile.GetClassName(cf.ConstantPool, slot); err != nil {
				return nil, fmt.Errorf("%s: pool slot %d: %w", name, i, err)
			}
		case *classfile.ConstantMemberref:
			ref, err := classfile.ResolveMemberref(cf.ConstantPool, slot)
			if err != nil {
				return nil, fmt.Errorf("%s: pool slot %d: %w", name, i, err)
			}
			pe.Kind = PoolMember
			pe.Class, pe.Name, pe.Descriptor, pe.Field = ref.ClassName, ref.Name, ref.Descriptor, ref.Field
		case *classfile.ConstantInteger:
			pe.Kind, pe.Value = PoolInt, c.Value
		case *classfile.ConstantFloat:
			pe.Kind, pe.Value = PoolFloat, c.Value
		case *classfile.ConstantLong:
			pe.Kind, pe.Value = PoolLong, c.Value
		case *classfile.ConstantDouble:
			pe.Kind, pe.Value = PoolDouble, c.Value
		case *classfile.ConstantString:
			s, err := classfile.GetString(cf.ConstantPool, slot)
			if err != nil {
				return nil, fmt.Errorf("%s: pool slot %d: %w", name, i, err)
			}
			pe.Kind, pe.Value = PoolString, s
		default:
			continue
		}
		d.Pool = append(d.Pool, pe)
	}

	for _, f := range cf.Fields {
		d.Fields = append(d.Fields, Field{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Static:     f.IsStatic(),
			Size:       classfile.TypeSize(f.Descriptor),
		})
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		args, err := classfile.ArgSlots(m.Descriptor, m.IsStatic())
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, m.Name, err)
		}
		md := Method{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Static:     m.IsStatic(),
			Native:     m.IsNative(),
			Abstract:   m.IsAbstract(),
			ArgSlots:   args,
		}
		for _, t := range m.Exceptions {
			md.Throws = append(md.Throws, int(t))
		}
		if m.Code != nil {
			md.Code = m.Code.Code
			md.MaxLocals = int(m.Code.MaxLocals)
			for _, ln := range m.Code.LineNumbers {
				md.Lines = append(md.Lines, Line{PC: int(ln.StartPC), Line: int(ln.Line)})
			}
			for _, h := range m.Code.ExceptionHandlers {
				md.Handlers = append(md.Handlers, Handler{
					StartPC:   int(h.StartPC),
					EndPC:     int(h.EndPC),
					HandlerPC: int(h.HandlerPC),
					CatchSlot: int(h.CatchType),
				})
			}
		} else if !md.Native && !md.Abstract {
			return nil, fmt.Errorf("%s.%s%s: concrete method without Code attribute", name, m.Name, m.Descriptor)
		}
		d.Methods = append(d.Methods, md)
	}
	return d, nil
}

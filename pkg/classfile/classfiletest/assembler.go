// Package classfiletest assembles small class files in memory for tests.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/daimatz/jvmlink/pkg/classfile"
)

// Method describes a method to assemble. Code is emitted verbatim; use the
// slots returned by the Builder's pool methods inside it.
type Method struct {
	Flags     uint16
	Name      string
	Desc      string
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
	Handlers  []classfile.ExceptionHandler
	Lines     []classfile.LineNumber
	Throws    []string
}

// Field describes a field to assemble.
type Field struct {
	Flags uint16
	Name  string
	Desc  string
}

// Builder accumulates a constant pool and members for one class.
type Builder struct {
	flags      uint16
	this       uint16
	super      uint16
	interfaces []uint16
	pool       bytes.Buffer
	next       uint16
	interned   map[string]uint16
	fields     []Field
	methods    []Method
}

// New starts a class named name extending super ("" for the root class).
func New(name, super string) *Builder {
	b := &Builder{flags: classfile.AccPublic | classfile.AccSuper, next: 1, interned: map[string]uint16{}}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	return b
}

// Interface marks the class as an interface.
func (b *Builder) Interface() *Builder {
	b.flags = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	return b
}

// Implements adds directly implemented interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.interfaces = append(b.interfaces, b.Class(n))
	}
	return b
}

func (b *Builder) add(key string, size uint16, write func(w *bytes.Buffer)) uint16 {
	if slot, ok := b.interned[key]; ok {
		return slot
	}
	slot := b.next
	write(&b.pool)
	b.next += size
	b.interned[key] = slot
	return slot
}

func u2(w *bytes.Buffer, v uint16) {
	_ = binary.Write(w, binary.BigEndian, v)
}

// Utf8 interns a Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	return b.add("u:"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagUtf8)
		u2(w, uint16(len(s)))
		w.WriteString(s)
	})
}

// Class interns a Class entry.
func (b *Builder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.add("c:"+name, 1, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagClass)
		u2(w, n)
	})
}

// String interns a String entry.
func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("s:"+s, 1, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagString)
		u2(w, n)
	})
}

// Int interns an Integer entry.
func (b *Builder) Int(v int32) uint16 {
	return b.add(fmt.Sprintf("i:%d", v), 1, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagInteger)
		_ = binary.Write(w, binary.BigEndian, v)
	})
}

// Long interns a Long entry, which occupies two slots.
func (b *Builder) Long(v int64) uint16 {
	return b.add(fmt.Sprintf("j:%d", v), 2, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagLong)
		_ = binary.Write(w, binary.BigEndian, v)
	})
}

// Double interns a Double entry, which occupies two slots.
func (b *Builder) Double(v float64) uint16 {
	return b.add(fmt.Sprintf("d:%x", math.Float64bits(v)), 2, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagDouble)
		_ = binary.Write(w, binary.BigEndian, math.Float64bits(v))
	})
}

func (b *Builder) nameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.add("nt:"+name+":"+desc, 1, func(w *bytes.Buffer) {
		w.WriteByte(classfile.TagNameAndType)
		u2(w, n)
		u2(w, d)
	})
}

func (b *Builder) member(tag uint8, class, name, desc string) uint16 {
	c, nt := b.Class(class), b.nameAndType(name, desc)
	return b.add(fmt.Sprintf("m%d:%s.%s%s", tag, class, name, desc), 1, func(w *bytes.Buffer) {
		w.WriteByte(tag)
		u2(w, c)
		u2(w, nt)
	})
}

// Methodref interns a Methodref entry.
func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.member(classfile.TagMethodref, class, name, desc)
}

// InterfaceMethodref interns an InterfaceMethodref entry.
func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.member(classfile.TagInterfaceMethodref, class, name, desc)
}

// Fieldref interns a Fieldref entry.
func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.member(classfile.TagFieldref, class, name, desc)
}

// AddField declares a field.
func (b *Builder) AddField(f Field) *Builder {
	b.Utf8(f.Name)
	b.Utf8(f.Desc)
	b.fields = append(b.fields, f)
	return b
}

// AddMethod declares a method.
func (b *Builder) AddMethod(m Method) *Builder {
	b.Utf8(m.Name)
	b.Utf8(m.Desc)
	if m.Code != nil {
		b.Utf8("Code")
		if len(m.Lines) > 0 {
			b.Utf8("LineNumberTable")
		}
	}
	if len(m.Throws) > 0 {
		b.Utf8("Exceptions")
		for _, t := range m.Throws {
			b.Class(t)
		}
	}
	b.methods = append(b.methods, m)
	return b
}

// Bytes encodes the class file.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	_ = binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	u2(&out, 0)
	u2(&out, 52)
	u2(&out, b.next)
	out.Write(b.pool.Bytes())
	u2(&out, b.flags)
	u2(&out, b.this)
	u2(&out, b.super)
	u2(&out, uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		u2(&out, i)
	}

	u2(&out, uint16(len(b.fields)))
	for _, f := range b.fields {
		u2(&out, f.Flags)
		u2(&out, b.interned["u:"+f.Name])
		u2(&out, b.interned["u:"+f.Desc])
		u2(&out, 0)
	}

	u2(&out, uint16(len(b.methods)))
	for _, m := range b.methods {
		u2(&out, m.Flags)
		u2(&out, b.interned["u:"+m.Name])
		u2(&out, b.interned["u:"+m.Desc])
		var attrs [][]byte
		if m.Code != nil {
			attrs = append(attrs, b.codeAttribute(m))
		}
		if len(m.Throws) > 0 {
			var body bytes.Buffer
			u2(&body, uint16(len(m.Throws)))
			for _, t := range m.Throws {
				u2(&body, b.interned["c:"+t])
			}
			attrs = append(attrs, attribute(b.interned["u:Exceptions"], body.Bytes()))
		}
		u2(&out, uint16(len(attrs)))
		for _, a := range attrs {
			out.Write(a)
		}
	}

	u2(&out, 0)
	return out.Bytes()
}

func (b *Builder) codeAttribute(m Method) []byte {
	var body bytes.Buffer
	maxStack := m.MaxStack
	if maxStack == 0 {
		maxStack = 4
	}
	u2(&body, maxStack)
	u2(&body, m.MaxLocals)
	_ = binary.Write(&body, binary.BigEndian, uint32(len(m.Code)))
	body.Write(m.Code)
	u2(&body, uint16(len(m.Handlers)))
	for _, h := range m.Handlers {
		u2(&body, h.StartPC)
		u2(&body, h.EndPC)
		u2(&body, h.HandlerPC)
		u2(&body, h.CatchType)
	}
	if len(m.Lines) == 0 {
		u2(&body, 0)
	} else {
		u2(&body, 1)
		var lines bytes.Buffer
		u2(&lines, uint16(len(m.Lines)))
		for _, l := range m.Lines {
			u2(&lines, l.StartPC)
			u2(&lines, l.Line)
		}
		body.Write(attribute(b.interned["u:LineNumberTable"], lines.Bytes()))
	}
	return attribute(b.interned["u:Code"], body.Bytes())
}

func attribute(name uint16, body []byte) []byte {
	var out bytes.Buffer
	u2(&out, name)
	_ = binary.Write(&out, binary.BigEndian, uint32(len(body)))
	out.Write(body)
	return out.Bytes()
}

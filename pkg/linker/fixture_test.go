package linker

import (
	"fmt"

	"github.com/daimatz/jvmlink/pkg/builtin"
	"github.com/daimatz/jvmlink/pkg/bytecode"
	"github.com/daimatz/jvmlink/pkg/classfile"
	"github.com/daimatz/jvmlink/pkg/classpath"
)

// classBuilder assembles a classpath.Descriptor with an interned pool.
type classBuilder struct {
	d     *classpath.Descriptor
	slots map[string]int
	next  int
}

func newClass(name, super string, ifaces ...string) *classBuilder {
	b := &classBuilder{
		d:     &classpath.Descriptor{Name: name, Super: super, Interfaces: ifaces},
		slots: make(map[string]int),
		next:  1,
	}
	b.classRef(name)
	if super != "" {
		b.classRef(super)
	}
	return b
}

func newInterface(name string, ifaces ...string) *classBuilder {
	b := newClass(name, "java/lang/Object", ifaces...)
	b.d.Interface = true
	return b
}

func (b *classBuilder) add(key string, e classpath.PoolEntry) int {
	if slot, ok := b.slots[key]; ok {
		return slot
	}
	e.Slot = b.next
	b.next++
	if e.Kind == classpath.PoolLong || e.Kind == classpath.PoolDouble {
		b.next++
	}
	b.slots[key] = e.Slot
	b.d.Pool = append(b.d.Pool, e)
	b.d.PoolSize = b.next
	return e.Slot
}

func (b *classBuilder) classRef(name string) int {
	return b.add("c:"+name, classpath.PoolEntry{Kind: classpath.PoolClass, Class: name})
}

func (b *classBuilder) methodRef(class, name, desc string) int {
	return b.add(fmt.Sprintf("m:%s.%s%s", class, name, desc), classpath.PoolEntry{
		Kind: classpath.PoolMember, Class: class, Name: name, Descriptor: desc,
	})
}

func (b *classBuilder) fieldRef(class, name, desc string) int {
	return b.add(fmt.Sprintf("f:%s.%s%s", class, name, desc), classpath.PoolEntry{
		Kind: classpath.PoolMember, Class: class, Name: name, Descriptor: desc, Field: true,
	})
}

func (b *classBuilder) str(s string) int {
	return b.add("s:"+s, classpath.PoolEntry{Kind: classpath.PoolString, Value: s})
}

// dupMethodRef adds a second pool entry for a method already referenced.
func (b *classBuilder) dupMethodRef(class, name, desc string) int {
	return b.add(fmt.Sprintf("m%d:%s.%s%s", b.next, class, name, desc), classpath.PoolEntry{
		Kind: classpath.PoolMember, Class: class, Name: name, Descriptor: desc,
	})
}

func (b *classBuilder) field(name, desc string, static bool) *classBuilder {
	b.d.Fields = append(b.d.Fields, classpath.Field{Name: name, Descriptor: desc, Static: static, Size: classfile.TypeSize(desc)})
	return b
}

func (b *classBuilder) method(name, desc string, static bool, code ...[]byte) *classBuilder {
	args, err := classfile.ArgSlots(desc, static)
	if err != nil {
		panic(err)
	}
	b.d.Methods = append(b.d.Methods, classpath.Method{
		Name:       name,
		Descriptor: desc,
		Static:     static,
		Code:       asm(code...),
		MaxLocals:  args,
		ArgSlots:   args,
	})
	return b
}

func (b *classBuilder) abstract(name, desc string) *classBuilder {
	args, _ := classfile.ArgSlots(desc, false)
	b.d.Methods = append(b.d.Methods, classpath.Method{Name: name, Descriptor: desc, Abstract: true, ArgSlots: args})
	return b
}

func (b *classBuilder) native(name, desc string, static bool) *classBuilder {
	args, _ := classfile.ArgSlots(desc, static)
	b.d.Methods = append(b.d.Methods, classpath.Method{Name: name, Descriptor: desc, Static: static, Native: true, ArgSlots: args})
	return b
}

// ctor adds <init>()V calling the superclass constructor.
func (b *classBuilder) ctor() *classBuilder {
	superInit := b.methodRef(b.d.Super, "<init>", "()V")
	return b.method("<init>", "()V", false, op(0x2A), op16(bytecode.OpInvokespecial, superInit), op(bytecode.OpReturn))
}

func asm(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func op(b ...byte) []byte { return b }

func op16(o byte, slot int) []byte { return []byte{o, byte(slot >> 8), byte(slot)} }

var ret = op(bytecode.OpReturn)

func object() *classBuilder {
	return newClass("java/lang/Object", "").method("<init>", "()V", false, ret)
}

// runtimeClasses returns the classes every catalog entry needs.
func runtimeClasses() []*classBuilder {
	byClass := map[string]*classBuilder{}
	var order []*classBuilder
	for _, e := range builtin.Entries() {
		b, ok := byClass[e.Class]
		if !ok {
			b = newClass(e.Class, "java/lang/Object")
			byClass[e.Class] = b
			order = append(order, b)
		}
		switch {
		case !e.IsMember():
		case e.Member == "<init>":
			b.method(e.Member, e.Descriptor, false, ret)
		default:
			b.method(e.Member, e.Descriptor, true, op(0x01, 0xB0))
		}
	}
	return order
}

func source(classes ...*classBuilder) *classpath.MemorySource {
	src := classpath.NewMemorySource()
	src.Add(object().d)
	for _, b := range runtimeClasses() {
		src.Add(b.d)
	}
	for _, b := range classes {
		src.Add(b.d)
	}
	return src
}

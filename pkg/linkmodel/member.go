package linkmodel

import (
	"fmt"

	"github.com/daimatz/jvmlink/pkg/builtin"
)

// Signature is a member's name and descriptor. Every distinct signature in the
// program shares one link id.
type Signature struct {
	Name       string
	Descriptor string
}

// IsMethod reports whether the descriptor is a method descriptor.
func (s Signature) IsMethod() bool {
	return len(s.Descriptor) > 0 && s.Descriptor[0] == '('
}

func (s Signature) String() string {
	return s.Name + s.Descriptor
}

// Names of special methods
const (
	ConstructorName = "<init>"
	ClinitName      = "<clinit>"
)

// ClinitSignature is the signature of every static initializer.
var ClinitSignature = Signature{Name: ClinitName, Descriptor: "()V"}

// Member identifies a member by class and signature, independent of where it is
// declared.
type Member struct {
	Class string
	Sig   Signature
}

func (m Member) String() string {
	return m.Class + "." + m.Sig.String()
}

// MethodOrField is implemented by *Method and *Field only.
type MethodOrField interface {
	Member() Member
	Owner() *Class
	LinkID() int
	IsStatic() bool
	Kept() bool
	setKept()
}

type memberBase struct {
	owner  *Class
	sig    Signature
	static bool
	kept   bool
	linkID int
}

func (b *memberBase) Member() Member { return Member{Class: b.owner.name, Sig: b.sig} }
func (b *memberBase) Owner() *Class { return b.owner }
func (b *memberBase) Signature() Signature { return b.sig }
func (b *memberBase) LinkID() int { return b.linkID }
func (b *memberBase) IsStatic() bool { return b.static }
func (b *memberBase) Kept() bool { return b.kept }
func (b *memberBase) setKept() { b.kept = true }

// MethodKind classifies methods.
type MethodKind int

const (
	Concrete MethodKind = iota
	Constructor
	StaticInitializer
	Abstract
	Native
)

func (k MethodKind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case Constructor:
		return "constructor"
	case StaticInitializer:
		return "static-initializer"
	case Abstract:
		return "abstract"
	case Native:
		return "native"
	}
	return fmt.Sprintf("MethodKind(%d)", int(k))
}

// LineNumber maps a method-relative pc to a source line.
type LineNumber struct {
	PC   int
	Line int
}

// ExceptionHandler is a method-relative exception table entry. CatchSlot is the
// class reference slot of the caught type, 0 for catch-all.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchSlot int
}

// Method is a declared method and the dependencies found in its code.
type Method struct {
	memberBase
	kind      MethodKind
	rawCode   []byte
	code      []byte
	argSlots  int
	maxLocals int
	lines     []LineNumber
	handlers  []ExceptionHandler

	classDeps  []*ClassRef
	memberRefs []*MemberRef
	arrayDeps  []ArrayType
	constants  []*ConstantRef
	builtins   []builtin.ID

	codeOffset  int
	nativeIndex int
}

func (m *Method) Kind() MethodKind { return m.kind }
func (m *Method) ArgSlots() int { return m.argSlots }
func (m *Method) MaxLocals() int { return m.maxLocals }
func (m *Method) HasCode() bool { return len(m.rawCode) > 0 }

// Code returns the method's instructions, rewritten once the model is optimized.
func (m *Method) Code() []byte {
	if m.code != nil {
		return m.code
	}
	return m.rawCode
}

// RawCode returns the instructions as loaded.
func (m *Method) RawCode() []byte { return m.rawCode }

func (m *Method) Lines() []LineNumber { return m.lines }
func (m *Method) Handlers() []ExceptionHandler { return m.handlers }
func (m *Method) ClassDeps() []*ClassRef { return m.classDeps }
func (m *Method) MemberRefs() []*MemberRef { return m.memberRefs }
func (m *Method) ArrayDeps() []ArrayType { return m.arrayDeps }
func (m *Method) Constants() []*ConstantRef { return m.constants }
func (m *Method) Builtins() []builtin.ID { return m.builtins }

// CodeOffset is the method's position in the global code array. Valid after Link.
func (m *Method) CodeOffset() int { return m.codeOffset }

// NativeIndex is the method's slot in the native table, -1 for non-native methods.
func (m *Method) NativeIndex() int { return m.nativeIndex }

// AddClassDep records a class the method's code depends on.
func (m *Method) AddClassDep(r *ClassRef) {
	for _, d := range m.classDeps {
		if d == r {
			return
		}
	}
	m.classDeps = append(m.classDeps, r)
}

// AddMemberRef records a field or method the method's code refers to.
func (m *Method) AddMemberRef(r *MemberRef) {
	for _, d := range m.memberRefs {
		if d == r {
			return
		}
	}
	m.memberRefs = append(m.memberRefs, r)
}

// AddArrayDep records a primitive array class the method allocates.
func (m *Method) AddArrayDep(t ArrayType) {
	for _, d := range m.arrayDeps {
		if d == t {
			return
		}
	}
	m.arrayDeps = append(m.arrayDeps, t)
}

// AddConstant records a loadable constant used by the method.
func (m *Method) AddConstant(r *ConstantRef) {
	for _, d := range m.constants {
		if d == r {
			return
		}
	}
	m.constants = append(m.constants, r)
}

// AddBuiltin records a catalog entry the method's instructions may trigger.
func (m *Method) AddBuiltin(id builtin.ID) {
	for _, d := range m.builtins {
		if d == id {
			return
		}
	}
	m.builtins = append(m.builtins, id)
}

func (m *Method) String() string {
	return m.Member().String()
}

// Field is a declared field.
type Field struct {
	memberBase
	size    int
	address int
}

// Size is the storage the field takes, 2 for long and double.
func (f *Field) Size() int { return f.size }

// Address is the static area offset of a static field or the object offset of an
// instance field. Valid after Link.
func (f *Field) Address() int { return f.address }

func (f *Field) String() string {
	return f.Member().String()
}

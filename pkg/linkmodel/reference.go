package linkmodel

import "fmt"

// RefKey locates a reference: the owning class and the constant pool slot.
type RefKey struct {
	Owner ClassID
	Slot  int
}

func (k RefKey) String() string {
	return fmt.Sprintf("%d:%d", k.Owner, k.Slot)
}

// Reference is a constant pool reference. The only implementations are
// *ClassRef, *MemberRef and *ConstantRef; switch over them exhaustively.
type Reference interface {
	Key() RefKey
	Kept() bool
	isReference()
}

type refBase struct {
	key  RefKey
	kept bool
}

func (r *refBase) Key() RefKey  { return r.key }
func (r *refBase) Kept() bool   { return r.kept }
func (r *refBase) isReference() {}

// ClassRef refers to a class by name.
type ClassRef struct {
	refBase
	Target   string
	targetID ClassID
}

// TargetID is the resolved id of Target. Valid after Link.
func (r *ClassRef) TargetID() ClassID { return r.targetID }

// MemberRef refers to a field or method as written at the use site.
type MemberRef struct {
	refBase
	TargetClass string
	Sig         Signature
	targetID    ClassID
	declaringID ClassID
	linkID      int
	index       int
}

// Member returns the referenced member as written.
func (r *MemberRef) Member() Member {
	return Member{Class: r.TargetClass, Sig: r.Sig}
}

// TargetID is the id of TargetClass. Valid after Link.
func (r *MemberRef) TargetID() ClassID { return r.targetID }

// DeclaringID is the id of the class that actually declares the member, which
// may be a superclass or interface of TargetClass. Valid after Link.
func (r *MemberRef) DeclaringID() ClassID { return r.declaringID }

// LinkID is the link id of Sig. Valid after Link.
func (r *MemberRef) LinkID() int { return r.linkID }

// Index is the compacted slot within the owning class's member table. Valid
// after Optimize.
func (r *MemberRef) Index() int { return r.index }

// ConstKind is the type of a constant reference.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstLong
	ConstDouble
	ConstString
)

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstFloat:
		return "float"
	case ConstLong:
		return "long"
	case ConstDouble:
		return "double"
	case ConstString:
		return "string"
	}
	return fmt.Sprintf("ConstKind(%d)", int(k))
}

// ConstantRef is a typed literal. Value holds int32, float32, int64, float64 or
// string according to Kind.
type ConstantRef struct {
	refBase
	Kind  ConstKind
	Value any
}

func checkConstValue(kind ConstKind, v any) bool {
	switch kind {
	case ConstInt:
		_, ok := v.(int32)
		return ok
	case ConstFloat:
		_, ok := v.(float32)
		return ok
	case ConstLong:
		_, ok := v.(int64)
		return ok
	case ConstDouble:
		_, ok := v.(float64)
		return ok
	case ConstString:
		_, ok := v.(string)
		return ok
	}
	return false
}

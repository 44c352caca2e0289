package linkmodel

import "fmt"

// ClassID identifies a class in the model.
type ClassID int

// NoClass is the id of an unresolved or absent class.
const NoClass ClassID = -1

// ClassKind distinguishes ordinary classes, interfaces and synthetic arrays.
type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindPrimitiveArray
	KindObjectArray
)

func (k ClassKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindPrimitiveArray:
		return "primitive-array"
	case KindObjectArray:
		return "object-array"
	}
	return fmt.Sprintf("ClassKind(%d)", int(k))
}

// ArrayType is a primitive array element type, numbered like the newarray
// operand.
type ArrayType int

const (
	TBoolean ArrayType = 4
	TChar    ArrayType = 5
	TFloat   ArrayType = 6
	TDouble  ArrayType = 7
	TByte    ArrayType = 8
	TShort   ArrayType = 9
	TInt     ArrayType = 10
	TLong    ArrayType = 11
)

var arrayTypeDescriptors = map[ArrayType]byte{
	TBoolean: 'Z', TChar: 'C', TFloat: 'F', TDouble: 'D',
	TByte: 'B', TShort: 'S', TInt: 'I', TLong: 'J',
}

// Valid reports whether t is one of the eight primitive element types.
func (t ArrayType) Valid() bool {
	_, ok := arrayTypeDescriptors[t]
	return ok
}

// ClassName returns the array class name for t, e.g. "[I" for TInt.
func (t ArrayType) ClassName() string {
	return "[" + string(arrayTypeDescriptors[t])
}

// ArrayTypeOf maps a primitive descriptor character to its ArrayType.
func ArrayTypeOf(c byte) (ArrayType, bool) {
	for t, d := range arrayTypeDescriptors {
		if d == c {
			return t, true
		}
	}
	return 0, false
}

// Class is one registered class, interface or array class.
type Class struct {
	id          ClassID
	name        string
	super       string
	kind        ClassKind
	interfaces  []string
	element     string
	elementType ArrayType
	kept        bool

	ownSize   int
	totalSize int

	methods  []*Method
	fields   []*Field
	declared map[Signature]MethodOrField
	refs     []Reference
	children []*Class
	maxSlot  int
}

func (c *Class) ID() ClassID { return c.id }
func (c *Class) Name() string { return c.name }
func (c *Class) Super() string { return c.super }
func (c *Class) Kind() ClassKind { return c.kind }
func (c *Class) Kept() bool { return c.kept }
func (c *Class) IsInterface() bool { return c.kind == KindInterface }
func (c *Class) IsArray() bool { return c.kind == KindPrimitiveArray || c.kind == KindObjectArray }
func (c *Class) Element() string { return c.element }
func (c *Class) ElementType() ArrayType { return c.elementType }

// Interfaces returns the names of the directly implemented interfaces.
func (c *Class) Interfaces() []string {
	return append([]string(nil), c.interfaces...)
}

// InstanceSize is the storage taken by the class's own kept instance fields.
// Valid after Link.
func (c *Class) InstanceSize() int { return c.ownSize }

// TotalInstanceSize includes every superclass's instance fields. Valid after Link.
func (c *Class) TotalInstanceSize() int { return c.totalSize }

// Methods returns the declared methods in declaration order.
func (c *Class) Methods() []*Method {
	return append([]*Method(nil), c.methods...)
}

// Fields returns the declared fields in declaration order.
func (c *Class) Fields() []*Field {
	return append([]*Field(nil), c.fields...)
}

// Refs returns the class's constant pool references in creation order.
func (c *Class) Refs() []Reference {
	return append([]Reference(nil), c.refs...)
}

// Declared returns the member declared directly in c with the given signature.
func (c *Class) Declared(sig Signature) (MethodOrField, bool) {
	mf, ok := c.declared[sig]
	return mf, ok
}

// MaxSlot returns the highest constant pool slot in use by the class.
func (c *Class) MaxSlot() int { return c.maxSlot }

func (c *Class) String() string {
	return fmt.Sprintf("%s#%d", c.name, c.id)
}

package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries.
// The returned slice is 1-indexed: index 0 is nil, and so is the slot following
// every long or double.
func parseConstantPool(rd *reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		tag := rd.u1()
		if err := rd.check("reading constant pool tag at index %d", i); err != nil {
			return nil, err
		}

		switch tag {
		case TagUtf8:
			n := rd.u2()
			pool[i] = &ConstantUtf8{Value: string(rd.bytes(int(n)))}
		case TagInteger:
			pool[i] = &ConstantInteger{Value: int32(rd.u4())}
		case TagFloat:
			pool[i] = &ConstantFloat{Value: math.Float32frombits(rd.u4())}
		case TagLong:
			pool[i] = &ConstantLong{Value: int64(rd.u8())}
		case TagDouble:
			pool[i] = &ConstantDouble{Value: math.Float64frombits(rd.u8())}
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: rd.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: rd.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			pool[i] = &ConstantMemberref{tag: tag, ClassIndex: rd.u2(), NameAndTypeIndex: rd.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: rd.u2(), DescriptorIndex: rd.u2()}
		case TagMethodHandle:
			// reference_kind (u1) + reference_index (u2)
			rd.bytes(3)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagMethodType:
			rd.bytes(2)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagDynamic, TagInvokeDynamic:
			// bootstrap_method_attr_index (u2) + name_and_type_index (u2)
			rd.bytes(4)
			pool[i] = &constantPlaceholder{tag: tag}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if err := rd.check("reading constant pool entry %d (tag %d)", i, tag); err != nil {
			return nil, err
		}
		if tag == TagLong || tag == TagDouble {
			i++
		}
	}

	return pool, nil
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

func entry(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := entry(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, e.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	e, err := entry(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := e.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class (tag=%d)", classIndex, e.Tag())
	}
	return GetUtf8(pool, class.NameIndex)
}

// GetString returns the value of a CONSTANT_String entry.
func GetString(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := entry(pool, index)
	if err != nil {
		return "", err
	}
	s, ok := e.(*ConstantString)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not String (tag=%d)", index, e.Tag())
	}
	return GetUtf8(pool, s.StringIndex)
}

// MemberRefInfo holds a resolved field or method reference.
type MemberRefInfo struct {
	ClassName  string
	Name       string
	Descriptor string
	Field      bool
}

// ResolveMemberref resolves a Fieldref, Methodref or InterfaceMethodref entry.
func ResolveMemberref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	e, err := entry(pool, index)
	if err != nil {
		return nil, err
	}
	ref, ok := e.(*ConstantMemberref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not a member reference (tag=%d)", index, e.Tag())
	}

	className, err := GetClassName(pool, ref.ClassIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member reference class: %w", err)
	}
	natEntry, err := entry(pool, ref.NameAndTypeIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving NameAndType: %w", err)
	}
	nat, ok := natEntry.(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", ref.NameAndTypeIndex)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member name: %w", err)
	}
	descriptor, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member descriptor: %w", err)
	}

	return &MemberRefInfo{
		ClassName:  className,
		Name:       name,
		Descriptor: descriptor,
		Field:      ref.IsField(),
	}, nil
}

package classfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseBytes parses an in-memory .class file.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	rd := &reader{r: r}
	cf := &ClassFile{}

	magic := rd.u4()
	if err := rd.check("reading magic number"); err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = rd.u2()
	cf.MajorVersion = rd.u2()
	cpCount := rd.u2()
	if err := rd.check("reading version and constant pool count"); err != nil {
		return nil, err
	}
	pool, err := parseConstantPool(rd, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = rd.u2()
	cf.ThisClass = rd.u2()
	cf.SuperClass = rd.u2()
	n := rd.u2()
	cf.Interfaces = make([]uint16, n)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = rd.u2()
	}
	if err := rd.check("reading class header"); err != nil {
		return nil, err
	}

	if cf.Fields, err = parseFields(rd, pool); err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	if cf.Methods, err = parseMethods(rd, pool); err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// class-level attributes are not needed for linking
	if _, err := parseAttributeInfos(rd, pool); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

// memberHeader reads access_flags, name and descriptor shared by fields and methods.
func memberHeader(rd *reader, pool []ConstantPoolEntry, kind string, i int) (uint16, string, string, error) {
	flags := rd.u2()
	nameIndex := rd.u2()
	descIndex := rd.u2()
	if err := rd.check("reading %s %d", kind, i); err != nil {
		return 0, "", "", err
	}
	name, err := GetUtf8(pool, nameIndex)
	if err != nil {
		return 0, "", "", fmt.Errorf("resolving %s %d name: %w", kind, i, err)
	}
	desc, err := GetUtf8(pool, descIndex)
	if err != nil {
		return 0, "", "", fmt.Errorf("resolving %s %d descriptor: %w", kind, i, err)
	}
	return flags, name, desc, nil
}

func parseFields(rd *reader, pool []ConstantPoolEntry) ([]FieldInfo, error) {
	count := rd.u2()
	if err := rd.check("reading fields count"); err != nil {
		return nil, err
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		flags, name, desc, err := memberHeader(rd, pool, "field", i)
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttributeInfos(rd, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing field %s attributes: %w", name, err)
		}
		fields[i] = FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
	}
	return fields, nil
}

func parseMethods(rd *reader, pool []ConstantPoolEntry) ([]MethodInfo, error) {
	count := rd.u2()
	if err := rd.check("reading methods count"); err != nil {
		return nil, err
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		flags, name, desc, err := memberHeader(rd, pool, "method", i)
		if err != nil {
			return nil, err
		}
		attrs, err := parseAttributeInfos(rd, pool)
		if err != nil {
			return nil, fmt.Errorf("parsing method %s attributes: %w", name, err)
		}

		m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
		for _, attr := range attrs {
			switch attr.Name {
			case "Code":
				if m.Code, err = parseCodeAttribute(attr.Data, pool); err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s%s: %w", name, desc, err)
				}
			case "Exceptions":
				if m.Exceptions, err = parseExceptionsAttribute(attr.Data); err != nil {
					return nil, fmt.Errorf("parsing Exceptions attribute for method %s%s: %w", name, desc, err)
				}
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(rd *reader, pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count := rd.u2()
	if err := rd.check("reading attributes count"); err != nil {
		return nil, err
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		nameIndex := rd.u2()
		length := rd.u4()
		data := rd.bytes(int(length))
		if err := rd.check("reading attribute %d", i); err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	s := &slice{data: data}
	maxStack, err := s.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := s.u2()
	if err != nil {
		return nil, err
	}
	codeLength, err := s.u4()
	if err != nil {
		return nil, err
	}
	raw, err := s.take(int(codeLength))
	if err != nil {
		return nil, fmt.Errorf("code_length %d: %w", codeLength, err)
	}
	ca := &CodeAttribute{
		MaxStack:  maxStack,
		MaxLocals: maxLocals,
		Code:      append([]byte(nil), raw...),
	}

	n, err := s.u2()
	if err != nil {
		return nil, fmt.Errorf("exception table length: %w", err)
	}
	ca.ExceptionHandlers = make([]ExceptionHandler, n)
	for i := range ca.ExceptionHandlers {
		var h ExceptionHandler
		for _, p := range []*uint16{&h.StartPC, &h.EndPC, &h.HandlerPC, &h.CatchType} {
			if *p, err = s.u2(); err != nil {
				return nil, fmt.Errorf("exception handler %d: %w", i, err)
			}
		}
		ca.ExceptionHandlers[i] = h
	}

	attrCount, err := s.u2()
	if err != nil {
		return nil, fmt.Errorf("code attributes count: %w", err)
	}
	for i := 0; i < int(attrCount); i++ {
		nameIndex, err := s.u2()
		if err != nil {
			return nil, err
		}
		length, err := s.u4()
		if err != nil {
			return nil, err
		}
		body, err := s.take(int(length))
		if err != nil {
			return nil, err
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving code attribute %d name: %w", i, err)
		}
		if name == "LineNumberTable" {
			lines, err := parseLineNumberTable(body)
			if err != nil {
				return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
			}
			ca.LineNumbers = append(ca.LineNumbers, lines...)
		}
	}
	return ca, nil
}

func parseLineNumberTable(data []byte) ([]LineNumber, error) {
	s := &slice{data: data}
	n, err := s.u2()
	if err != nil {
		return nil, err
	}
	lines := make([]LineNumber, n)
	for i := range lines {
		if lines[i].StartPC, err = s.u2(); err != nil {
			return nil, err
		}
		if lines[i].Line, err = s.u2(); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

func parseExceptionsAttribute(data []byte) ([]uint16, error) {
	s := &slice{data: data}
	n, err := s.u2()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		if out[i], err = s.u2(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

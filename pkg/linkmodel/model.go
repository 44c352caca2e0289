// Package linkmodel is the registry of classes, members and constant pool
// references a program is linked from. A Model is open while the resolver marks
// entities kept; Link assigns addresses and Optimize closes it.
package linkmodel

import (
	"sort"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jvmlink.linkmodel")

// Model owns every class, member and reference of one link run.
type Model struct {
	classes []*Class
	byName  map[string]*Class
	refs    map[RefKey]Reference

	linkIDs    map[Signature]int
	signatures []Signature
	staticSize int

	translation  map[RefKey]*MemberRef
	memberTables map[ClassID][]*MemberRef

	linked bool
	closed bool
}

// New returns an empty, open model.
func New() *Model {
	return &Model{
		byName:  make(map[string]*Class),
		refs:    make(map[RefKey]Reference),
		linkIDs: make(map[Signature]int),
	}
}

// ClassSpec describes a class to register.
type ClassSpec struct {
	Name string
	// Super is empty only for the root class.
	Super       string
	Kind        ClassKind
	Interfaces  []string
	Element     string
	ElementType ArrayType
	// PoolSize is the class file's constant_pool_count; slots above it are free.
	PoolSize int
}

// MethodSpec describes a method to register.
type MethodSpec struct {
	Sig       Signature
	Static    bool
	Native    bool
	Abstract  bool
	Code      []byte
	ArgSlots  int
	MaxLocals int
	Lines     []LineNumber
	Handlers  []ExceptionHandler
}

// FieldSpec describes a field to register.
type FieldSpec struct {
	Sig    Signature
	Static bool
	Size   int
}

func (m *Model) checkOpen(op string) error {
	if m.closed {
		return Internalf("%s on closed model", op)
	}
	return nil
}

// CreateClass registers a class. Its superclass and interfaces must already be
// registered. The first class registered must be the root and gets id 0.
func (m *Model) CreateClass(spec ClassSpec) (*Class, error) {
	if err := m.checkOpen("CreateClass"); err != nil {
		return nil, err
	}
	if _, ok := m.byName[spec.Name]; ok {
		return nil, Internalf("class %s registered twice", spec.Name)
	}
	if (spec.Super == "") != (len(m.classes) == 0) {
		if spec.Super == "" {
			return nil, Internalf("second root class %s", spec.Name)
		}
		return nil, Internalf("class %s registered before the root", spec.Name)
	}

	c := &Class{
		id:          ClassID(len(m.classes)),
		name:        spec.Name,
		super:       spec.Super,
		kind:        spec.Kind,
		interfaces:  append([]string(nil), spec.Interfaces...),
		element:     spec.Element,
		elementType: spec.ElementType,
		declared:    make(map[Signature]MethodOrField),
	}
	if spec.PoolSize > 1 {
		c.maxSlot = spec.PoolSize - 1
	}

	if spec.Super != "" {
		super, ok := m.byName[spec.Super]
		if !ok {
			return nil, Internalf("%s: superclass %s not registered", spec.Name, spec.Super)
		}
		super.children = append(super.children, c)
	}
	for _, name := range spec.Interfaces {
		iface, ok := m.byName[name]
		if !ok {
			return nil, Internalf("%s: interface %s not registered", spec.Name, name)
		}
		iface.children = append(iface.children, c)
	}

	m.classes = append(m.classes, c)
	m.byName[c.name] = c
	log.Debugf("registered %s as %s", c, c.kind)
	return c, nil
}

func methodKind(spec MethodSpec) MethodKind {
	switch {
	case spec.Native:
		return Native
	case spec.Abstract:
		return Abstract
	case spec.Sig.Name == ConstructorName:
		return Constructor
	case spec.Sig.Name == ClinitName:
		return StaticInitializer
	}
	return Concrete
}

// CreateMethod registers a method declared in c.
func (m *Model) CreateMethod(c *Class, spec MethodSpec) (*Method, error) {
	if err := m.checkOpen("CreateMethod"); err != nil {
		return nil, err
	}
	if _, ok := c.declared[spec.Sig]; ok {
		return nil, Internalf("%s.%s declared twice", c.name, spec.Sig)
	}
	kind := methodKind(spec)
	if (kind == Native || kind == Abstract) != (len(spec.Code) == 0) {
		return nil, Internalf("%s.%s: %s method with %d bytes of code", c.name, spec.Sig, kind, len(spec.Code))
	}
	meth := &Method{
		memberBase:  memberBase{owner: c, sig: spec.Sig, static: spec.Static, linkID: -1},
		kind:        kind,
		rawCode:     spec.Code,
		argSlots:    spec.ArgSlots,
		maxLocals:   spec.MaxLocals,
		lines:       spec.Lines,
		handlers:    spec.Handlers,
		codeOffset:  -1,
		nativeIndex: -1,
	}
	c.methods = append(c.methods, meth)
	c.declared[spec.Sig] = meth
	return meth, nil
}

// CreateField registers a field declared in c.
func (m *Model) CreateField(c *Class, spec FieldSpec) (*Field, error) {
	if err := m.checkOpen("CreateField"); err != nil {
		return nil, err
	}
	if _, ok := c.declared[spec.Sig]; ok {
		return nil, Internalf("%s.%s declared twice", c.name, spec.Sig)
	}
	f := &Field{
		memberBase: memberBase{owner: c, sig: spec.Sig, static: spec.Static, linkID: -1},
		size:       spec.Size,
		address:    -1,
	}
	c.fields = append(c.fields, f)
	c.declared[spec.Sig] = f
	return f, nil
}

func (m *Model) addRef(c *Class, slot int, r Reference) error {
	if err := m.checkOpen("create reference"); err != nil {
		return err
	}
	if slot <= 0 || slot > 0xFFFF {
		return Internalf("%s: pool slot %d out of range", c.name, slot)
	}
	key := RefKey{Owner: c.id, Slot: slot}
	if _, ok := m.refs[key]; ok {
		return Internalf("%s: pool slot %d registered twice", c.name, slot)
	}
	m.refs[key] = r
	c.refs = append(c.refs, r)
	if slot > c.maxSlot {
		c.maxSlot = slot
	}
	return nil
}

// CreateClassRef registers a class reference at a pool slot of c.
func (m *Model) CreateClassRef(c *Class, slot int, target string) (*ClassRef, error) {
	r := &ClassRef{refBase: refBase{key: RefKey{Owner: c.id, Slot: slot}}, Target: target, targetID: NoClass}
	if err := m.addRef(c, slot, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateMemberRef registers a field or method reference at a pool slot of c.
func (m *Model) CreateMemberRef(c *Class, slot int, target string, sig Signature) (*MemberRef, error) {
	r := &MemberRef{
		refBase:     refBase{key: RefKey{Owner: c.id, Slot: slot}},
		TargetClass: target,
		Sig:         sig,
		targetID:    NoClass,
		declaringID: NoClass,
		linkID:      -1,
		index:       -1,
	}
	if err := m.addRef(c, slot, r); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateConstantRef registers a literal at a pool slot of c.
func (m *Model) CreateConstantRef(c *Class, slot int, kind ConstKind, value any) (*ConstantRef, error) {
	if !checkConstValue(kind, value) {
		return nil, Internalf("%s: pool slot %d: %T is not a %s constant", c.name, slot, value, kind)
	}
	r := &ConstantRef{refBase: refBase{key: RefKey{Owner: c.id, Slot: slot}}, Kind: kind, Value: value}
	if err := m.addRef(c, slot, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AllocSlot reserves the next pool slot of c not used by its class file or any
// registered reference.
func (m *Model) AllocSlot(c *Class) (int, error) {
	if err := m.checkOpen("AllocSlot"); err != nil {
		return 0, err
	}
	if c.maxSlot >= 0xFFFF {
		return 0, Internalf("%s: constant pool exhausted", c.name)
	}
	c.maxSlot++
	return c.maxSlot, nil
}

// KeepClass marks c kept and reports whether it was newly kept.
func (m *Model) KeepClass(c *Class) (bool, error) {
	if err := m.checkOpen("KeepClass"); err != nil {
		return false, err
	}
	if c.kept {
		return false, nil
	}
	c.kept = true
	return true, nil
}

// KeepMember marks a method or field kept and reports whether it was newly
// kept. The declaring class must already be kept.
func (m *Model) KeepMember(mf MethodOrField) (bool, error) {
	if err := m.checkOpen("KeepMember"); err != nil {
		return false, err
	}
	if !mf.Owner().kept {
		return false, Internalf("keeping %s before its class", mf.Member())
	}
	if mf.Kept() {
		return false, nil
	}
	mf.setKept()
	return true, nil
}

// KeepRef marks a reference kept and reports whether it was newly kept. The
// owning class must already be kept.
func (m *Model) KeepRef(r Reference) (bool, error) {
	if err := m.checkOpen("KeepRef"); err != nil {
		return false, err
	}
	owner := m.ClassByID(r.Key().Owner)
	if owner == nil || !owner.kept {
		return false, Internalf("keeping reference %s before its class", r.Key())
	}
	var base *refBase
	switch r := r.(type) {
	case *ClassRef:
		base = &r.refBase
	case *MemberRef:
		base = &r.refBase
	case *ConstantRef:
		base = &r.refBase
	}
	if base.kept {
		return false, nil
	}
	base.kept = true
	return true, nil
}

// Class returns the class registered under name.
func (m *Model) Class(name string) (*Class, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// ClassByID returns the class with the given id, or nil.
func (m *Model) ClassByID(id ClassID) *Class {
	if id < 0 || int(id) >= len(m.classes) {
		return nil
	}
	return m.classes[id]
}

// Root returns the root class, or nil before it is registered.
func (m *Model) Root() *Class {
	return m.ClassByID(0)
}

// Classes returns every class in ascending id order.
func (m *Model) Classes() []*Class {
	return append([]*Class(nil), m.classes...)
}

// KeptClasses returns the kept classes in ascending id order.
func (m *Model) KeptClasses() []*Class {
	var out []*Class
	for _, c := range m.classes {
		if c.kept {
			out = append(out, c)
		}
	}
	return out
}

// SuperOf returns the superclass of c, or nil for the root.
func (m *Model) SuperOf(c *Class) *Class {
	if c.super == "" {
		return nil
	}
	return m.byName[c.super]
}

// Subclasses returns the direct subclasses and implementers of c in ascending
// id order.
func (m *Model) Subclasses(c *Class) []*Class {
	out := append([]*Class(nil), c.children...)
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Ref returns the reference at a pool slot of the class with the given id.
func (m *Model) Ref(owner ClassID, slot int) (Reference, bool) {
	r, ok := m.refs[RefKey{Owner: owner, Slot: slot}]
	return r, ok
}

// FindMember locates sig in the named class, then its superclass chain, then
// the interfaces of every class on the chain in breadth-first order.
func (m *Model) FindMember(class string, sig Signature) (MethodOrField, error) {
	c, ok := m.byName[class]
	if !ok {
		return nil, Internalf("member lookup in unregistered class %s", class)
	}
	var chain []*Class
	for cur := c; cur != nil; cur = m.SuperOf(cur) {
		if mf, ok := cur.declared[sig]; ok {
			return mf, nil
		}
		chain = append(chain, cur)
	}

	seen := make(map[string]bool)
	var queue []string
	for _, cur := range chain {
		queue = append(queue, cur.interfaces...)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		iface, ok := m.byName[name]
		if !ok {
			return nil, Internalf("%s: interface %s not registered", class, name)
		}
		if mf, ok := iface.declared[sig]; ok {
			return mf, nil
		}
		queue = append(queue, iface.interfaces...)
	}
	return nil, &UnresolvedMemberError{Class: class, Sig: sig}
}

// LinkID returns the link id of sig. Valid after Link.
func (m *Model) LinkID(sig Signature) (int, bool) {
	id, ok := m.linkIDs[sig]
	return id, ok
}

// Signatures returns every linked signature indexed by link id.
func (m *Model) Signatures() []Signature {
	return append([]Signature(nil), m.signatures...)
}

// StaticSize is the total storage of kept static fields. Valid after Link.
func (m *Model) StaticSize() int { return m.staticSize }

// Linked reports whether Link has run.
func (m *Model) Linked() bool { return m.linked }

// Closed reports whether Optimize has run.
func (m *Model) Closed() bool { return m.closed }

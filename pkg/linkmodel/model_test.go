package linkmodel

import (
	"bytes"
	"errors"
	"testing"
)

const root = "java/lang/Object"

func mustClass(t *testing.T, m *Model, spec ClassSpec) *Class {
	t.Helper()
	if spec.Kind == KindClass && spec.Name != root && spec.Super == "" {
		spec.Super = root
	}
	c, err := m.CreateClass(spec)
	if err != nil {
		t.Fatalf("CreateClass(%s): %v", spec.Name, err)
	}
	return c
}

func mustMethod(t *testing.T, m *Model, c *Class, spec MethodSpec) *Method {
	t.Helper()
	meth, err := m.CreateMethod(c, spec)
	if err != nil {
		t.Fatalf("CreateMethod(%s.%s): %v", c.Name(), spec.Sig, err)
	}
	return meth
}

func mustField(t *testing.T, m *Model, c *Class, spec FieldSpec) *Field {
	t.Helper()
	f, err := m.CreateField(c, spec)
	if err != nil {
		t.Fatalf("CreateField(%s.%s): %v", c.Name(), spec.Sig, err)
	}
	return f
}

func keepAll(t *testing.T, m *Model, c *Class) {
	t.Helper()
	if _, err := m.KeepClass(c); err != nil {
		t.Fatal(err)
	}
	for _, meth := range c.Methods() {
		if _, err := m.KeepMember(meth); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range c.Fields() {
		if _, err := m.KeepMember(f); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range c.Refs() {
		if _, err := m.KeepRef(r); err != nil {
			t.Fatal(err)
		}
	}
}

var ret = []byte{0xB1}

func TestCreateClassIDs(t *testing.T) {
	m := New()
	if _, err := m.CreateClass(ClassSpec{Name: "a/A", Super: root}); err == nil {
		t.Error("expected error registering a class before the root")
	}
	obj := mustClass(t, m, ClassSpec{Name: root})
	a := mustClass(t, m, ClassSpec{Name: "a/A"})
	arr := mustClass(t, m, ClassSpec{Name: "[I", Super: root, Kind: KindPrimitiveArray, ElementType: TInt})

	if obj.ID() != 0 || a.ID() != 1 || arr.ID() != 2 {
		t.Errorf("ids = %d %d %d", obj.ID(), a.ID(), arr.ID())
	}
	if _, err := m.CreateClass(ClassSpec{Name: "a/A", Super: root}); err == nil {
		t.Error("expected error for duplicate class")
	}
	if _, err := m.CreateClass(ClassSpec{Name: "b/Root"}); err == nil {
		t.Error("expected error for second root")
	}
	if _, err := m.CreateClass(ClassSpec{Name: "b/B", Super: "b/Missing"}); err == nil {
		t.Error("expected error for unregistered superclass")
	}
	if got := m.Subclasses(obj); len(got) != 2 || got[0] != a || got[1] != arr {
		t.Errorf("Subclasses(root) = %v", got)
	}
	if TInt.ClassName() != "[I" || TBoolean.ClassName() != "[Z" {
		t.Error("ArrayType.ClassName")
	}
	if at, ok := ArrayTypeOf('J'); !ok || at != TLong {
		t.Errorf("ArrayTypeOf('J') = %v %v", at, ok)
	}
}

func TestFindMember(t *testing.T) {
	m := New()
	mustClass(t, m, ClassSpec{Name: root})
	outer := mustClass(t, m, ClassSpec{Name: "i/Outer", Super: root, Kind: KindInterface})
	inner := mustClass(t, m, ClassSpec{Name: "i/Inner", Super: root, Kind: KindInterface, Interfaces: []string{"i/Outer"}})
	base := mustClass(t, m, ClassSpec{Name: "a/Base"})
	sub := mustClass(t, m, ClassSpec{Name: "a/Sub", Super: "a/Base", Interfaces: []string{"i/Inner"}})

	run := Signature{"run", "()V"}
	size := Signature{"size", "()I"}
	deep := Signature{"deep", "()V"}
	baseRun := mustMethod(t, m, base, MethodSpec{Sig: run, Code: ret})
	mustMethod(t, m, inner, MethodSpec{Sig: run, Abstract: true})
	innerSize := mustMethod(t, m, inner, MethodSpec{Sig: size, Abstract: true})
	outerDeep := mustMethod(t, m, outer, MethodSpec{Sig: deep, Abstract: true})

	tests := []struct {
		name string
		sig  Signature
		want MethodOrField
	}{
		{"superclass before interface", run, baseRun},
		{"direct interface", size, innerSize},
		{"inherited interface", deep, outerDeep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.FindMember(sub.Name(), tt.sig)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("FindMember = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := m.FindMember(sub.Name(), Signature{"missing", "()V"})
	var unresolved *UnresolvedMemberError
	if !errors.As(err, &unresolved) || unresolved.Class != "a/Sub" {
		t.Errorf("missing member error = %v", err)
	}
}

func TestKeepRequiresClass(t *testing.T) {
	m := New()
	mustClass(t, m, ClassSpec{Name: root})
	a := mustClass(t, m, ClassSpec{Name: "a/A"})
	f := mustField(t, m, a, FieldSpec{Sig: Signature{"x", "I"}, Size: 1})

	var internal *InternalError
	if _, err := m.KeepMember(f); !errors.As(err, &internal) {
		t.Fatalf("KeepMember before KeepClass = %v", err)
	}
	if added, err := m.KeepClass(a); err != nil || !added {
		t.Fatalf("KeepClass = %v %v", added, err)
	}
	if added, _ := m.KeepClass(a); added {
		t.Error("second KeepClass reported a change")
	}
	if added, err := m.KeepMember(f); err != nil || !added {
		t.Fatalf("KeepMember = %v %v", added, err)
	}
	if added, _ := m.KeepMember(f); added {
		t.Error("second KeepMember reported a change")
	}
}

func TestCreateMethodChecksCode(t *testing.T) {
	m := New()
	obj := mustClass(t, m, ClassSpec{Name: root})
	if _, err := m.CreateMethod(obj, MethodSpec{Sig: Signature{"f", "()V"}, Native: true, Code: ret}); err == nil {
		t.Error("expected error for native method with code")
	}
	if _, err := m.CreateMethod(obj, MethodSpec{Sig: Signature{"g", "()V"}}); err == nil {
		t.Error("expected error for concrete method without code")
	}
	meth := mustMethod(t, m, obj, MethodSpec{Sig: Signature{ConstructorName, "()V"}, Code: ret})
	if meth.Kind() != Constructor {
		t.Errorf("kind = %v", meth.Kind())
	}
	if _, err := m.CreateMethod(obj, MethodSpec{Sig: Signature{ConstructorName, "()V"}, Code: ret}); err == nil {
		t.Error("expected error for duplicate method")
	}
}

func TestLinkLayout(t *testing.T) {
	m := New()
	obj := mustClass(t, m, ClassSpec{Name: root})
	base := mustClass(t, m, ClassSpec{Name: "a/Base"})
	sub := mustClass(t, m, ClassSpec{Name: "a/Sub", Super: "a/Base"})

	mustMethod(t, m, obj, MethodSpec{Sig: Signature{ConstructorName, "()V"}, Code: ret})
	b1 := mustField(t, m, base, FieldSpec{Sig: Signature{"count", "J"}, Size: 2})
	bs := mustField(t, m, base, FieldSpec{Sig: Signature{"total", "I"}, Static: true, Size: 1})
	b2 := mustField(t, m, base, FieldSpec{Sig: Signature{"flag", "Z"}, Size: 1})
	s1 := mustField(t, m, sub, FieldSpec{Sig: Signature{"extra", "I"}, Size: 1})
	ss := mustField(t, m, sub, FieldSpec{Sig: Signature{"cache", "D"}, Static: true, Size: 2})
	run := mustMethod(t, m, base, MethodSpec{Sig: Signature{"run", "()V"}, Code: []byte{0x04, 0x57, 0xB1}})
	nat := mustMethod(t, m, base, MethodSpec{Sig: Signature{"peek", "()I"}, Native: true, Static: true})
	subRun := mustMethod(t, m, sub, MethodSpec{Sig: Signature{"run", "()V"}, Code: ret})
	dead := mustMethod(t, m, sub, MethodSpec{Sig: Signature{"dead", "()V"}, Code: ret})

	keepAll(t, m, obj)
	keepAll(t, m, base)
	if _, err := m.KeepClass(sub); err != nil {
		t.Fatal(err)
	}
	for _, mf := range []MethodOrField{s1, ss, subRun} {
		if _, err := m.KeepMember(mf); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}

	if got := run.CodeOffset(); got != 1 {
		t.Errorf("run offset = %d, want 1", got)
	}
	if got := subRun.CodeOffset(); got != 4 {
		t.Errorf("Sub.run offset = %d, want 4", got)
	}
	if dead.CodeOffset() != -1 {
		t.Errorf("dropped method got offset %d", dead.CodeOffset())
	}
	if nat.NativeIndex() != 0 || run.NativeIndex() != -1 {
		t.Errorf("native indices = %d %d", nat.NativeIndex(), run.NativeIndex())
	}
	if bs.Address() != 0 || ss.Address() != 1 || m.StaticSize() != 3 {
		t.Errorf("static addresses = %d %d, size %d", bs.Address(), ss.Address(), m.StaticSize())
	}
	if b1.Address() != 0 || b2.Address() != 2 || s1.Address() != 3 {
		t.Errorf("instance addresses = %d %d %d", b1.Address(), b2.Address(), s1.Address())
	}
	if base.TotalInstanceSize() != 3 || sub.InstanceSize() != 1 || sub.TotalInstanceSize() != 4 {
		t.Errorf("sizes = %d %d %d", base.TotalInstanceSize(), sub.InstanceSize(), sub.TotalInstanceSize())
	}
	if run.LinkID() != subRun.LinkID() || run.LinkID() == nat.LinkID() {
		t.Errorf("link ids run=%d Sub.run=%d peek=%d", run.LinkID(), subRun.LinkID(), nat.LinkID())
	}
	if id, ok := m.LinkID(Signature{"dead", "()V"}); ok {
		t.Errorf("dropped signature got link id %d", id)
	}
}

func TestLinkRejectsDroppedTarget(t *testing.T) {
	m := New()
	obj := mustClass(t, m, ClassSpec{Name: root})
	a := mustClass(t, m, ClassSpec{Name: "a/A"})
	mustClass(t, m, ClassSpec{Name: "a/Gone"})
	if _, err := m.CreateClassRef(a, 3, "a/Gone"); err != nil {
		t.Fatal(err)
	}
	keepAll(t, m, obj)
	keepAll(t, m, a)
	var internal *InternalError
	if err := m.Link(); !errors.As(err, &internal) {
		t.Errorf("Link = %v, want InternalError", err)
	}
}

// optimizeFixture builds a caller whose pool refers to Helper.compute through
// two slots and to Helper.value once.
func optimizeFixture(t *testing.T) (*Model, *Class, *Method) {
	t.Helper()
	m := New()
	obj := mustClass(t, m, ClassSpec{Name: root})
	dropped := mustClass(t, m, ClassSpec{Name: "a/Dropped"})
	helper := mustClass(t, m, ClassSpec{Name: "a/Helper"})
	caller := mustClass(t, m, ClassSpec{Name: "a/Caller", PoolSize: 20})

	compute := Signature{"compute", "()I"}
	mustMethod(t, m, helper, MethodSpec{Sig: compute, Static: true, Code: []byte{0x03, 0xAC}})
	mustField(t, m, helper, FieldSpec{Sig: Signature{"value", "I"}, Static: true, Size: 1})
	mustMethod(t, m, dropped, MethodSpec{Sig: compute, Static: true, Code: []byte{0x03, 0xAC}})

	for _, r := range []struct {
		slot int
		sig  Signature
	}{{7, compute}, {12, compute}, {15, Signature{"value", "I"}}} {
		if _, err := m.CreateMemberRef(caller, r.slot, "a/Helper", r.sig); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.CreateConstantRef(caller, 4, ConstString, "hi"); err != nil {
		t.Fatal(err)
	}
	code := []byte{
		0xB8, 0x00, 0x07, // invokestatic #7
		0xB8, 0x00, 0x0C, // invokestatic #12
		0x60,             // iadd
		0xB3, 0x00, 0x0F, // putstatic #15
		0x12, 0x04, // ldc #4
		0x57, // pop
		0xB1, // return
	}
	run := mustMethod(t, m, caller, MethodSpec{Sig: Signature{"run", "()V"}, Static: true, Code: code})

	keepAll(t, m, obj)
	keepAll(t, m, helper)
	keepAll(t, m, caller)
	if err := m.Link(); err != nil {
		t.Fatal(err)
	}
	return m, caller, run
}

func TestOptimizeDedupAndRenumber(t *testing.T) {
	m, caller, run := optimizeFixture(t)
	raw := append([]byte(nil), run.RawCode()...)
	if err := m.Optimize(); err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	if _, ok := m.Class("a/Dropped"); ok {
		t.Error("dropped class survived Optimize")
	}
	helper, _ := m.Class("a/Helper")
	if helper.ID() != 1 || caller.ID() != 2 {
		t.Errorf("renumbered ids = %d %d, want 1 2", helper.ID(), caller.ID())
	}
	for i, c := range m.Classes() {
		if int(c.ID()) != i {
			t.Errorf("class %s has id %d at position %d", c.Name(), c.ID(), i)
		}
	}

	table := m.MemberTable(caller)
	if len(table) != 2 {
		t.Fatalf("member table has %d entries, want 2", len(table))
	}
	a, err := m.Translate(caller.ID(), 7)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.Translate(caller.ID(), 12)
	if a != b || a.Index() != 0 {
		t.Errorf("slots 7 and 12 translate to %v (%d) and %v (%d)", a.Key(), a.Index(), b.Key(), b.Index())
	}
	if a.TargetID() != helper.ID() || a.DeclaringID() != helper.ID() {
		t.Errorf("target ids = %d %d", a.TargetID(), a.DeclaringID())
	}
	v, _ := m.Translate(caller.ID(), 15)
	if v.Index() != 1 {
		t.Errorf("value index = %d", v.Index())
	}

	want := []byte{0xB8, 0x00, 0x00, 0xB8, 0x00, 0x00, 0x60, 0xB3, 0x00, 0x01, 0x12, 0x04, 0x57, 0xB1}
	if !bytes.Equal(run.Code(), want) {
		t.Errorf("rewritten code = % x, want % x", run.Code(), want)
	}
	if !bytes.Equal(run.RawCode(), raw) {
		t.Error("raw code was modified")
	}

	if err := m.RewriteReferences(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(run.Code(), want) {
		t.Errorf("second rewrite = % x", run.Code())
	}
}

func TestClosedModelRejectsMutation(t *testing.T) {
	m, caller, run := optimizeFixture(t)
	if err := m.Optimize(); err != nil {
		t.Fatal(err)
	}
	if !m.Closed() {
		t.Fatal("model not closed")
	}
	checks := map[string]func() error{
		"CreateClass": func() error { _, err := m.CreateClass(ClassSpec{Name: "x/X", Super: root}); return err },
		"CreateRef":   func() error { _, err := m.CreateClassRef(caller, 30, root); return err },
		"KeepMember":  func() error { _, err := m.KeepMember(run); return err },
		"AllocSlot":   func() error { _, err := m.AllocSlot(caller); return err },
		"Link":        m.Link,
		"Optimize":    m.Optimize,
	}
	for name, fn := range checks {
		var internal *InternalError
		if err := fn(); !errors.As(err, &internal) {
			t.Errorf("%s on closed model = %v", name, err)
		}
	}
}

func TestAllocSlot(t *testing.T) {
	m := New()
	mustClass(t, m, ClassSpec{Name: root})
	c := mustClass(t, m, ClassSpec{Name: "a/A", PoolSize: 10})
	slot, err := m.AllocSlot(c)
	if err != nil || slot != 10 {
		t.Fatalf("AllocSlot = %d %v, want 10", slot, err)
	}
	if _, err := m.CreateMemberRef(c, 25, root, Signature{ConstructorName, "()V"}); err != nil {
		t.Fatal(err)
	}
	if slot, _ := m.AllocSlot(c); slot != 26 {
		t.Errorf("AllocSlot after slot 25 = %d", slot)
	}
	if _, err := m.CreateClassRef(c, 25, root); err == nil {
		t.Error("expected error for reused slot")
	}
	if _, err := m.CreateConstantRef(c, 30, ConstInt, 5); err == nil {
		t.Error("expected error for untyped int constant")
	}
}

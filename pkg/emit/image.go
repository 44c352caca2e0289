// Package emit turns a linked and optimized program into its runtime image and
// the side files generated from it: the pc trace table and the C id header.
package emit

import (
	"sort"

	"github.com/tliron/commonlog"

	"github.com/daimatz/jvmlink/pkg/builtin"
	"github.com/daimatz/jvmlink/pkg/linker"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
	"github.com/daimatz/jvmlink/pkg/native"
)

var log = commonlog.GetLogger("jvmlink.emit")

// Image is everything the runtime needs to execute a linked program. Class ids,
// link ids and code offsets are the ones assigned by the linker; -1 stands for
// "none" wherever an id is optional.
type Image struct {
	BuildID     string        `cbor:"1,keyasint"`
	Entry       string        `cbor:"2,keyasint"`
	EntryOffset int           `cbor:"3,keyasint"`
	StaticSize  int           `cbor:"4,keyasint"`
	Signatures  []string      `cbor:"5,keyasint"`
	Classes     []ClassInfo   `cbor:"6,keyasint"`
	Code        []byte        `cbor:"7,keyasint"`
	Handlers    []Handler     `cbor:"8,keyasint,omitempty"`
	Lines       []Line        `cbor:"9,keyasint,omitempty"`
	Builtins    []BuiltinLink `cbor:"10,keyasint,omitempty"`
	Natives     []Native      `cbor:"11,keyasint,omitempty"`
	InitOrder   []string      `cbor:"12,keyasint,omitempty"`
}

// ClassInfo describes one class, its member reference table and its members.
type ClassInfo struct {
	ID           int    `cbor:"1,keyasint"`
	Name         string `cbor:"2,keyasint"`
	Kind         string `cbor:"3,keyasint"`
	Super        int    `cbor:"4,keyasint"`
	Interfaces   []int  `cbor:"5,keyasint,omitempty"`
	InstanceSize int    `cbor:"6,keyasint"`
	// Element is the element class of object arrays.
	Element int `cbor:"7,keyasint"`
	// ElementType is the newarray type code of primitive arrays.
	ElementType int          `cbor:"8,keyasint,omitempty"`
	MemberRefs  []MemberLink `cbor:"9,keyasint,omitempty"`
	Methods     []MethodInfo `cbor:"10,keyasint,omitempty"`
	Fields      []FieldInfo  `cbor:"11,keyasint,omitempty"`
	ClassRefs   []ClassLink  `cbor:"12,keyasint,omitempty"`
	Constants   []Constant   `cbor:"13,keyasint,omitempty"`
}

// MemberLink is one entry of a class's compacted member reference table.
type MemberLink struct {
	Class     int `cbor:"1,keyasint"`
	Declaring int `cbor:"2,keyasint"`
	LinkID    int `cbor:"3,keyasint"`
}

// MethodInfo is a method of a class. Tables are sorted by link id.
type MethodInfo struct {
	LinkID     int    `cbor:"1,keyasint"`
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
	Static     bool   `cbor:"4,keyasint"`
	CodeOffset int    `cbor:"5,keyasint"`
	CodeLength int    `cbor:"6,keyasint"`
	MaxLocals  int    `cbor:"7,keyasint"`
	ArgSlots   int    `cbor:"8,keyasint"`
	Native     int    `cbor:"9,keyasint"`
}

// FieldInfo is a field with its address: an offset into the instance for
// instance fields, into the static area otherwise.
type FieldInfo struct {
	LinkID     int    `cbor:"1,keyasint"`
	Name       string `cbor:"2,keyasint"`
	Descriptor string `cbor:"3,keyasint"`
	Static     bool   `cbor:"4,keyasint"`
	Address    int    `cbor:"5,keyasint"`
	Size       int    `cbor:"6,keyasint"`
}

// ClassLink resolves a class reference pool slot.
type ClassLink struct {
	Slot  int `cbor:"1,keyasint"`
	Class int `cbor:"2,keyasint"`
}

// Constant is a literal pool slot. Int carries int and long values, Float
// carries float and double values.
type Constant struct {
	Slot  int     `cbor:"1,keyasint"`
	Kind  string  `cbor:"2,keyasint"`
	Int   int64   `cbor:"3,keyasint,omitempty"`
	Float float64 `cbor:"4,keyasint,omitempty"`
	Text  string  `cbor:"5,keyasint,omitempty"`
}

// Handler is an exception table entry with absolute pcs. Catch is -1 for a
// catch-all handler.
type Handler struct {
	Class     int `cbor:"1,keyasint"`
	StartPC   int `cbor:"2,keyasint"`
	EndPC     int `cbor:"3,keyasint"`
	HandlerPC int `cbor:"4,keyasint"`
	Catch     int `cbor:"5,keyasint"`
}

// Line maps an absolute pc to a source line of a method.
type Line struct {
	PC     int    `cbor:"1,keyasint"`
	Line   int    `cbor:"2,keyasint"`
	Method string `cbor:"3,keyasint"`
}

// BuiltinLink locates a catalog entry the runtime constructs on its own. LinkID
// is -1 for class entries.
type BuiltinLink struct {
	Name   string `cbor:"1,keyasint"`
	Class  int    `cbor:"2,keyasint"`
	LinkID int    `cbor:"3,keyasint"`
}

// Native is one entry of the native method table.
type Native struct {
	Index     int    `cbor:"1,keyasint"`
	Class     int    `cbor:"2,keyasint"`
	LinkID    int    `cbor:"3,keyasint"`
	Symbol    string `cbor:"4,keyasint"`
	Prototype string `cbor:"5,keyasint"`
}

// Build assembles the image of r. The model must be closed.
func Build(r *linker.Result) (*Image, error) {
	m := r.Model
	if !m.Closed() {
		return nil, linkmodel.Internalf("emit: model is not optimized")
	}

	img := &Image{
		Entry:       r.Main.String(),
		EntryOffset: r.EntryOffset(),
		StaticSize:  m.StaticSize(),
		InitOrder:   r.InitOrder,
	}
	for _, sig := range m.Signatures() {
		img.Signatures = append(img.Signatures, sig.String())
	}

	var natives []Native
	for _, c := range m.Classes() {
		info, err := classInfo(m, c)
		if err != nil {
			return nil, err
		}

		for _, meth := range c.Methods() {
			if meth.Kind() == linkmodel.Native {
				b := native.Binding{
					Index:      meth.NativeIndex(),
					Class:      c.Name(),
					Method:     meth.Member().Sig.Name,
					Descriptor: meth.Member().Sig.Descriptor,
					Static:     meth.IsStatic(),
				}
				proto, err := b.Prototype()
				if err != nil {
					return nil, err
				}
				natives = append(natives, Native{
					Index:     b.Index,
					Class:     int(c.ID()),
					LinkID:    meth.LinkID(),
					Symbol:    b.Symbol(),
					Prototype: proto,
				})
			}
			if !meth.HasCode() {
				continue
			}
			if meth.CodeOffset() != len(img.Code) {
				return nil, linkmodel.Internalf("emit: %s at offset %d, code array has %d bytes", meth, meth.CodeOffset(), len(img.Code))
			}
			base := meth.CodeOffset()
			img.Code = append(img.Code, meth.Code()...)

			name := meth.Member().String()
			for _, ln := range meth.Lines() {
				img.Lines = append(img.Lines, Line{PC: base + ln.PC, Line: ln.Line, Method: name})
			}
			for _, h := range meth.Handlers() {
				catch := -1
				if h.CatchSlot != 0 {
					ref, ok := m.Ref(c.ID(), h.CatchSlot)
					cr, isClass := ref.(*linkmodel.ClassRef)
					if !ok || !isClass {
						return nil, linkmodel.Internalf("emit: %s: handler catches unresolved slot %d", meth, h.CatchSlot)
					}
					catch = int(cr.TargetID())
				}
				img.Handlers = append(img.Handlers, Handler{
					Class:     int(c.ID()),
					StartPC:   base + h.StartPC,
					EndPC:     base + h.EndPC,
					HandlerPC: base + h.HandlerPC,
					Catch:     catch,
				})
			}
		}
		img.Classes = append(img.Classes, info)
	}
	sort.SliceStable(img.Lines, func(i, j int) bool { return img.Lines[i].PC < img.Lines[j].PC })
	sort.Slice(natives, func(i, j int) bool { return natives[i].Index < natives[j].Index })
	img.Natives = natives

	for _, id := range r.Builtins {
		link, err := builtinLink(m, builtin.Lookup(id))
		if err != nil {
			return nil, err
		}
		img.Builtins = append(img.Builtins, link)
	}

	id, err := buildID(img)
	if err != nil {
		return nil, err
	}
	img.BuildID = id
	log.Infof("image %s: %d classes, %d bytes of code", id, len(img.Classes), len(img.Code))
	return img, nil
}

func classInfo(m *linkmodel.Model, c *linkmodel.Class) (ClassInfo, error) {
	info := ClassInfo{
		ID:           int(c.ID()),
		Name:         c.Name(),
		Kind:         c.Kind().String(),
		Super:        -1,
		InstanceSize: c.TotalInstanceSize(),
		Element:      -1,
		ElementType:  int(c.ElementType()),
	}
	if super := m.SuperOf(c); super != nil {
		info.Super = int(super.ID())
	}
	for _, name := range c.Interfaces() {
		iface, ok := m.Class(name)
		if !ok {
			continue
		}
		info.Interfaces = append(info.Interfaces, int(iface.ID()))
	}
	if c.Kind() == linkmodel.KindObjectArray {
		elem, ok := m.Class(c.Element())
		if !ok {
			return info, linkmodel.Internalf("emit: %s: element class %s is not kept", c, c.Element())
		}
		info.Element = int(elem.ID())
	}

	for _, r := range m.MemberTable(c) {
		info.MemberRefs = append(info.MemberRefs, MemberLink{
			Class:     int(r.TargetID()),
			Declaring: int(r.DeclaringID()),
			LinkID:    r.LinkID(),
		})
	}

	for _, meth := range c.Methods() {
		info.Methods = append(info.Methods, MethodInfo{
			LinkID:     meth.LinkID(),
			Name:       meth.Member().Sig.Name,
			Descriptor: meth.Member().Sig.Descriptor,
			Static:     meth.IsStatic(),
			CodeOffset: meth.CodeOffset(),
			CodeLength: len(meth.Code()),
			MaxLocals:  meth.MaxLocals(),
			ArgSlots:   meth.ArgSlots(),
			Native:     meth.NativeIndex(),
		})
	}
	sort.Slice(info.Methods, func(i, j int) bool { return info.Methods[i].LinkID < info.Methods[j].LinkID })

	for _, f := range c.Fields() {
		info.Fields = append(info.Fields, FieldInfo{
			LinkID:     f.LinkID(),
			Name:       f.Member().Sig.Name,
			Descriptor: f.Member().Sig.Descriptor,
			Static:     f.IsStatic(),
			Address:    f.Address(),
			Size:       f.Size(),
		})
	}

	for _, ref := range c.Refs() {
		switch ref := ref.(type) {
		case *linkmodel.ClassRef:
			info.ClassRefs = append(info.ClassRefs, ClassLink{Slot: ref.Key().Slot, Class: int(ref.TargetID())})
		case *linkmodel.ConstantRef:
			k := Constant{Slot: ref.Key().Slot, Kind: ref.Kind.String()}
			switch v := ref.Value.(type) {
			case int32:
				k.Int = int64(v)
			case int64:
				k.Int = v
			case float32:
				k.Float = float64(v)
			case float64:
				k.Float = v
			case string:
				k.Text = v
			}
			info.Constants = append(info.Constants, k)
		case *linkmodel.MemberRef:
		}
	}
	return info, nil
}

func builtinLink(m *linkmodel.Model, e builtin.Entry) (BuiltinLink, error) {
	c, ok := m.Class(e.Class)
	if !ok {
		return BuiltinLink{}, linkmodel.Internalf("emit: builtin %s: class is not kept", e.Name)
	}
	link := BuiltinLink{Name: e.Name, Class: int(c.ID()), LinkID: -1}
	if e.IsMember() {
		sig := linkmodel.Signature{Name: e.Member, Descriptor: e.Descriptor}
		mf, ok := c.Declared(sig)
		if !ok {
			return BuiltinLink{}, linkmodel.Internalf("emit: builtin %s: %s is not kept", e.Name, e)
		}
		link.LinkID = mf.LinkID()
	}
	return link, nil
}

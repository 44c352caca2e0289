package linker

import (
	"fmt"
	"strings"

	"github.com/daimatz/jvmlink/pkg/bytecode"
	"github.com/daimatz/jvmlink/pkg/classpath"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// pendingClass is a fetched class waiting for its supertypes to be registered.
type pendingClass struct {
	desc *classpath.Descriptor
	deps []string
	next int
}

func supertypes(d *classpath.Descriptor) []string {
	var deps []string
	if d.Super != "" {
		deps = append(deps, d.Super)
	}
	return append(deps, d.Interfaces...)
}

// loadClass returns the registered class with the given name, loading it and
// every missing supertype first. Newly registered classes are kept and their
// static initializers pushed.
func (l *Linker) loadClass(name string) (*linkmodel.Class, error) {
	if c, ok := l.model.Class(name); ok {
		return c, nil
	}
	if strings.HasPrefix(name, "[") {
		return l.loadArray(name)
	}

	var stack []*pendingClass
	loading := make(map[string]bool)
	fetch := func(name string) error {
		if loading[name] {
			return &linkmodel.LoaderError{Class: name, Err: fmt.Errorf("cyclic inheritance")}
		}
		d, err := l.source.Load(name)
		if err != nil {
			return &linkmodel.LoaderError{Class: name, Err: err}
		}
		loading[name] = true
		stack = append(stack, &pendingClass{desc: d, deps: supertypes(d)})
		return nil
	}

	if err := fetch(name); err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.deps) {
			dep := top.deps[top.next]
			top.next++
			if _, ok := l.model.Class(dep); ok {
				continue
			}
			if err := fetch(dep); err != nil {
				return nil, err
			}
			continue
		}
		stack = stack[:len(stack)-1]
		delete(loading, top.desc.Name)
		if err := l.register(top.desc); err != nil {
			return nil, err
		}
	}
	c, _ := l.model.Class(name)
	return c, nil
}

func constKind(k classpath.PoolKind) (linkmodel.ConstKind, bool) {
	switch k {
	case classpath.PoolInt:
		return linkmodel.ConstInt, true
	case classpath.PoolFloat:
		return linkmodel.ConstFloat, true
	case classpath.PoolLong:
		return linkmodel.ConstLong, true
	case classpath.PoolDouble:
		return linkmodel.ConstDouble, true
	case classpath.PoolString:
		return linkmodel.ConstString, true
	}
	return 0, false
}

// register adds a fetched class to the model: its pool, fields and methods, and
// the dependencies found in every method's code.
func (l *Linker) register(d *classpath.Descriptor) error {
	if d.Super == "" && d.Name != l.root {
		return &linkmodel.LoaderError{Class: d.Name, Err: fmt.Errorf("no superclass")}
	}
	kind := linkmodel.KindClass
	if d.Interface {
		kind = linkmodel.KindInterface
	}
	c, err := l.model.CreateClass(linkmodel.ClassSpec{
		Name:       d.Name,
		Super:      d.Super,
		Kind:       kind,
		Interfaces: d.Interfaces,
		PoolSize:   d.PoolSize,
	})
	if err != nil {
		return err
	}
	if _, err := l.model.KeepClass(c); err != nil {
		return err
	}

	for _, e := range d.Pool {
		switch e.Kind {
		case classpath.PoolClass:
			_, err = l.model.CreateClassRef(c, e.Slot, e.Class)
		case classpath.PoolMember:
			sig := linkmodel.Signature{Name: e.Name, Descriptor: e.Descriptor}
			_, err = l.model.CreateMemberRef(c, e.Slot, e.Class, sig)
		default:
			kind, ok := constKind(e.Kind)
			if !ok {
				return &linkmodel.LoaderError{Class: d.Name, Err: fmt.Errorf("pool slot %d: unsupported %s entry", e.Slot, e.Kind)}
			}
			_, err = l.model.CreateConstantRef(c, e.Slot, kind, e.Value)
		}
		if err != nil {
			return err
		}
	}

	for _, f := range d.Fields {
		_, err := l.model.CreateField(c, linkmodel.FieldSpec{
			Sig:    linkmodel.Signature{Name: f.Name, Descriptor: f.Descriptor},
			Static: f.Static,
			Size:   f.Size,
		})
		if err != nil {
			return err
		}
	}

	for i := range d.Methods {
		md := &d.Methods[i]
		spec := linkmodel.MethodSpec{
			Sig:       linkmodel.Signature{Name: md.Name, Descriptor: md.Descriptor},
			Static:    md.Static,
			Native:    md.Native,
			Abstract:  md.Abstract,
			Code:      md.Code,
			ArgSlots:  md.ArgSlots,
			MaxLocals: md.MaxLocals,
		}
		if d.Name == l.root && md.Name == linkmodel.ConstructorName && md.Descriptor == "()V" {
			spec.Code = []byte{bytecode.OpReturn}
			spec.Handlers = nil
		} else {
			for _, ln := range md.Lines {
				spec.Lines = append(spec.Lines, linkmodel.LineNumber{PC: ln.PC, Line: ln.Line})
			}
			for _, h := range md.Handlers {
				spec.Handlers = append(spec.Handlers, linkmodel.ExceptionHandler{
					StartPC: h.StartPC, EndPC: h.EndPC, HandlerPC: h.HandlerPC, CatchSlot: h.CatchSlot,
				})
			}
		}
		meth, err := l.model.CreateMethod(c, spec)
		if err != nil {
			return err
		}
		if err := l.scan(c, meth, md.Throws); err != nil {
			return &linkmodel.LoaderError{Class: d.Name, Err: fmt.Errorf("%s%s: %w", md.Name, md.Descriptor, err)}
		}
	}

	log.Debugf("loaded %s", c)
	if _, ok := c.Declared(linkmodel.ClinitSignature); ok {
		l.push(linkmodel.Member{Class: c.Name(), Sig: linkmodel.ClinitSignature})
	}
	return nil
}

// loadArray registers an array class and any array classes it is built from.
// "[I" is a primitive array, "[Lp/C;" an array of p/C and "[[I" an array of "[I".
func (l *Linker) loadArray(name string) (*linkmodel.Class, error) {
	if _, err := l.loadClass(l.root); err != nil {
		return nil, err
	}
	var chain []string
	for cur := name; ; cur = cur[1:] {
		if _, ok := l.model.Class(cur); ok {
			break
		}
		chain = append(chain, cur)
		if !strings.HasPrefix(cur, "[[") {
			break
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := l.registerArray(chain[i]); err != nil {
			return nil, err
		}
	}
	c, _ := l.model.Class(name)
	return c, nil
}

func (l *Linker) registerArray(name string) error {
	spec := linkmodel.ClassSpec{Name: name, Super: l.root}
	elem := name[1:]
	switch {
	case len(elem) == 1:
		t, ok := linkmodel.ArrayTypeOf(elem[0])
		if !ok {
			return &linkmodel.LoaderError{Class: name, Err: fmt.Errorf("unknown primitive element type %q", elem)}
		}
		spec.Kind, spec.ElementType = linkmodel.KindPrimitiveArray, t
	case strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") && len(elem) > 2:
		spec.Kind, spec.Element = linkmodel.KindObjectArray, elem[1:len(elem)-1]
		if _, err := l.loadClass(spec.Element); err != nil {
			return err
		}
	case strings.HasPrefix(elem, "["):
		spec.Kind, spec.Element = linkmodel.KindObjectArray, elem
	default:
		return &linkmodel.LoaderError{Class: name, Err: fmt.Errorf("malformed array class name")}
	}
	c, err := l.model.CreateClass(spec)
	if err != nil {
		return err
	}
	_, err = l.model.KeepClass(c)
	return err
}

// ArrayOf returns the name of the array class whose elements are of class name.
func ArrayOf(name string) string {
	if strings.HasPrefix(name, "[") {
		return "[" + name
	}
	return "[L" + name + ";"
}

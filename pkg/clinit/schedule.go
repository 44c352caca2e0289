package clinit

import (
	"github.com/tliron/commonlog"

	"github.com/daimatz/jvmlink/pkg/bytecode"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

var log = commonlog.GetLogger("jvmlink.clinit")

// EntrySignature is the signature of the synthesized entry method.
var EntrySignature = linkmodel.Signature{Name: "<jvminit>", Descriptor: "()V"}

type visit struct {
	class string
	meth  *linkmodel.Method
}

// Build returns the initialization dependency graph of the kept static
// initializers. Starting at each initializer, every member a traversed method
// refers to adds an edge from the method's class to the member's class, and to
// the class declaring the member when it is inherited. Static callees are
// traversed in turn; instance methods and fields contribute their edges only.
func Build(m *linkmodel.Model) (*Graph, error) {
	g := NewGraph()
	seen := make(map[*linkmodel.Method]bool)
	for _, c := range m.KeptClasses() {
		mf, ok := c.Declared(linkmodel.ClinitSignature)
		if !ok || !mf.Kept() {
			continue
		}
		g.AddNode(c.Name())
		work := []visit{{class: c.Name(), meth: mf.(*linkmodel.Method)}}
		seen[mf.(*linkmodel.Method)] = true
		for len(work) > 0 {
			cur := work[len(work)-1]
			work = work[:len(work)-1]
			refs := cur.meth.MemberRefs()
			for i := len(refs) - 1; i >= 0; i-- {
				r := refs[i]
				if r.TargetClass != cur.class {
					g.AddEdge(cur.class, r.TargetClass)
				}
				target, err := m.FindMember(r.TargetClass, r.Sig)
				if err != nil {
					return nil, err
				}
				owner := target.Owner().Name()
				if owner != r.TargetClass && owner != cur.class {
					g.AddEdge(cur.class, owner)
				}
				callee, ok := target.(*linkmodel.Method)
				if !ok || !callee.IsStatic() || seen[callee] {
					continue
				}
				seen[callee] = true
				work = append(work, visit{class: owner, meth: callee})
			}
		}
	}
	return g, nil
}

// Schedule returns the class names in initialization order, with bootstrap
// first when it takes part.
func Schedule(m *linkmodel.Model, bootstrap string) ([]string, error) {
	g, err := Build(m)
	if err != nil {
		return nil, err
	}
	order, err := g.Order(bootstrap)
	if err != nil {
		return nil, err
	}
	log.Infof("initialization order covers %d classes", len(order))
	return order, nil
}

// Synthesize adds the always-kept static method <jvminit>()V to the entry class.
// It invokes each kept static initializer of order in turn, then the entry
// method, then returns. The invokes use new pool slots of the entry class.
func Synthesize(m *linkmodel.Model, entry string, main linkmodel.Signature, order []string) (*linkmodel.Method, error) {
	c, ok := m.Class(entry)
	if !ok || !c.Kept() {
		return nil, linkmodel.Internalf("entry class %s is not kept", entry)
	}

	var code []byte
	var refs []*linkmodel.MemberRef
	invoke := func(class string, sig linkmodel.Signature) error {
		slot, err := m.AllocSlot(c)
		if err != nil {
			return err
		}
		r, err := m.CreateMemberRef(c, slot, class, sig)
		if err != nil {
			return err
		}
		if _, err := m.KeepRef(r); err != nil {
			return err
		}
		refs = append(refs, r)
		code = bytecode.AppendInvokestatic(code, uint16(slot))
		return nil
	}

	for _, name := range order {
		cls, ok := m.Class(name)
		if !ok {
			continue
		}
		if mf, ok := cls.Declared(linkmodel.ClinitSignature); ok && mf.Kept() {
			if err := invoke(name, linkmodel.ClinitSignature); err != nil {
				return nil, err
			}
		}
	}
	if err := invoke(entry, main); err != nil {
		return nil, err
	}
	code = append(code, bytecode.OpReturn)

	meth, err := m.CreateMethod(c, linkmodel.MethodSpec{Sig: EntrySignature, Static: true, Code: code})
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		meth.AddMemberRef(r)
	}
	if _, err := m.KeepMember(meth); err != nil {
		return nil, err
	}
	return meth, nil
}

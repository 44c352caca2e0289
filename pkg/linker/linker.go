// Package linker computes the reachability closure of a program: it loads
// classes on demand from a classpath.Source and marks everything the entry point
// and the seed references need as kept in a linkmodel.Model.
package linker

import (
	"github.com/tliron/commonlog"

	"github.com/daimatz/jvmlink/pkg/builtin"
	"github.com/daimatz/jvmlink/pkg/classpath"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

var log = commonlog.GetLogger("jvmlink.linker")

// DefaultRoot is the root of the class hierarchy.
const DefaultRoot = "java/lang/Object"

// StringClass is loaded whenever a string constant is kept.
const StringClass = "java/lang/String"

// Linker owns one link run. It is not safe for concurrent use.
type Linker struct {
	model    *linkmodel.Model
	source   classpath.Source
	root     string
	builtins *builtin.KeptSet

	// pending members, processed last in first out
	stack      []linkmodel.Member
	arrayRefs  map[arrayRefKey]*linkmodel.ClassRef
	expansions int
}

type arrayRefKey struct {
	owner linkmodel.ClassID
	name  string
}

// New returns a linker over an empty model.
func New(src classpath.Source) *Linker {
	return &Linker{
		model:     linkmodel.New(),
		source:    src,
		root:      DefaultRoot,
		builtins:  builtin.NewKeptSet(),
		arrayRefs: make(map[arrayRefKey]*linkmodel.ClassRef),
	}
}

// Model returns the model the linker populates.
func (l *Linker) Model() *linkmodel.Model { return l.model }

// Builtins returns the catalog entries kept so far.
func (l *Linker) Builtins() *builtin.KeptSet { return l.builtins }

// Require loads and keeps class, locates the member through the class hierarchy,
// keeps it and, for a method, everything its code depends on. Requiring a member
// that is already kept does nothing.
func (l *Linker) Require(class, name, descriptor string) error {
	l.push(linkmodel.Member{Class: class, Sig: linkmodel.Signature{Name: name, Descriptor: descriptor}})
	return l.drain()
}

// LoadClass loads and keeps a class, or an array class given its descriptor
// name, together with its supertypes and static initializer.
func (l *Linker) LoadClass(name string) (*linkmodel.Class, error) {
	c, err := l.loadClass(name)
	if err != nil {
		return nil, err
	}
	return c, l.drain()
}

func (l *Linker) push(m linkmodel.Member) {
	l.stack = append(l.stack, m)
}

func (l *Linker) drain() error {
	for len(l.stack) > 0 {
		m := l.stack[len(l.stack)-1]
		l.stack = l.stack[:len(l.stack)-1]
		if err := l.requireOne(m); err != nil {
			l.stack = nil
			return err
		}
	}
	return nil
}

func (l *Linker) requireOne(m linkmodel.Member) error {
	if _, err := l.loadClass(m.Class); err != nil {
		return err
	}
	mf, err := l.model.FindMember(m.Class, m.Sig)
	if err != nil {
		return err
	}
	added, err := l.model.KeepMember(mf)
	if err != nil || !added {
		return err
	}
	meth, ok := mf.(*linkmodel.Method)
	if !ok {
		return nil
	}
	l.expansions++
	log.Debugf("require %s", meth)
	return l.expand(meth)
}

// expand keeps every dependency recorded for meth. Member references are pushed
// in reverse so they are required in code order.
func (l *Linker) expand(meth *linkmodel.Method) error {
	for _, r := range meth.ClassDeps() {
		if _, err := l.model.KeepRef(r); err != nil {
			return err
		}
		if _, err := l.loadClass(r.Target); err != nil {
			return err
		}
	}
	for _, t := range meth.ArrayDeps() {
		if _, err := l.loadClass(t.ClassName()); err != nil {
			return err
		}
	}
	for _, r := range meth.Constants() {
		if _, err := l.model.KeepRef(r); err != nil {
			return err
		}
		if r.Kind == linkmodel.ConstString {
			if _, err := l.loadClass(StringClass); err != nil {
				return err
			}
		}
	}
	for _, id := range meth.Builtins() {
		if err := l.keepBuiltin(id); err != nil {
			return err
		}
	}
	refs := meth.MemberRefs()
	for _, r := range refs {
		if _, err := l.model.KeepRef(r); err != nil {
			return err
		}
	}
	for i := len(refs) - 1; i >= 0; i-- {
		l.push(refs[i].Member())
	}
	return nil
}

// keepBuiltin marks a catalog entry and its steps kept, loads their classes and
// requires their members.
func (l *Linker) keepBuiltin(id builtin.ID) error {
	if l.builtins.Kept(id) {
		return nil
	}
	l.builtins.Keep(id)
	for _, e := range builtin.Expand(id) {
		entry := builtin.Lookup(e)
		if _, err := l.loadClass(entry.Class); err != nil {
			return err
		}
		if entry.IsMember() {
			l.push(linkmodel.Member{
				Class: entry.Class,
				Sig:   linkmodel.Signature{Name: entry.Member, Descriptor: entry.Descriptor},
			})
		}
	}
	return nil
}

// Stats summarizes the kept state of the model.
type Stats struct {
	Classes    int
	Methods    int
	Fields     int
	Refs       int
	Builtins   int
	Expansions int
}

// Stats counts what is currently kept.
func (l *Linker) Stats() Stats {
	s := Stats{Builtins: l.builtins.Len(), Expansions: l.expansions}
	for _, c := range l.model.KeptClasses() {
		s.Classes++
		for _, m := range c.Methods() {
			if m.Kept() {
				s.Methods++
			}
		}
		for _, f := range c.Fields() {
			if f.Kept() {
				s.Fields++
			}
		}
		for _, r := range c.Refs() {
			if r.Kept() {
				s.Refs++
			}
		}
	}
	return s
}

package linkmodel

import (
	"sort"

	"github.com/daimatz/jvmlink/pkg/bytecode"
)

type dedupKey struct {
	target ClassID
	linkID int
}

// Optimize drops everything not kept, renumbers the surviving classes, builds
// each class's deduplicated member reference table and rewrites method code to
// use it. The model is closed afterwards.
func (m *Model) Optimize() error {
	if err := m.checkOpen("Optimize"); err != nil {
		return err
	}
	if !m.linked {
		return Internalf("Optimize before Link")
	}

	renumber := make(map[ClassID]ClassID)
	var classes []*Class
	for _, c := range m.classes {
		if !c.kept {
			delete(m.byName, c.name)
			continue
		}
		renumber[c.id] = ClassID(len(classes))
		classes = append(classes, c)
	}
	if len(classes) == 0 || renumber[0] != 0 || classes[0].id != 0 {
		return Internalf("root class is not kept")
	}
	log.Infof("optimize: keeping %d of %d classes", len(classes), len(m.classes))

	remap := func(id ClassID) (ClassID, error) {
		nid, ok := renumber[id]
		if !ok {
			return NoClass, Internalf("class id %d has no renumbering", id)
		}
		return nid, nil
	}

	m.refs = make(map[RefKey]Reference)
	for _, c := range classes {
		nid, _ := remap(c.id)
		c.id = nid
		c.methods = prune(c.methods)
		c.fields = prune(c.fields)
		c.declared = make(map[Signature]MethodOrField)
		for _, meth := range c.methods {
			c.declared[meth.sig] = meth
		}
		for _, f := range c.fields {
			c.declared[f.sig] = f
		}
		var children []*Class
		for _, child := range c.children {
			if child.kept {
				children = append(children, child)
			}
		}
		c.children = children

		var refs []Reference
		for _, r := range c.refs {
			if !r.Kept() {
				continue
			}
			var err error
			switch r := r.(type) {
			case *ClassRef:
				r.key.Owner = nid
				r.targetID, err = remap(r.targetID)
			case *MemberRef:
				r.key.Owner = nid
				if r.targetID, err = remap(r.targetID); err == nil {
					r.declaringID, err = remap(r.declaringID)
				}
			case *ConstantRef:
				r.key.Owner = nid
			}
			if err != nil {
				return err
			}
			m.refs[r.Key()] = r
			refs = append(refs, r)
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Key().Slot < refs[j].Key().Slot })
		c.refs = refs
	}
	m.classes = classes

	m.translation = make(map[RefKey]*MemberRef)
	m.memberTables = make(map[ClassID][]*MemberRef)
	for _, c := range classes {
		canonical := make(map[dedupKey]*MemberRef)
		var table []*MemberRef
		for _, r := range c.refs {
			mr, ok := r.(*MemberRef)
			if !ok {
				continue
			}
			k := dedupKey{target: mr.targetID, linkID: mr.linkID}
			first, ok := canonical[k]
			if !ok {
				mr.index = len(table)
				table = append(table, mr)
				canonical[k] = mr
				first = mr
			} else {
				mr.index = first.index
			}
			m.translation[mr.key] = first
		}
		m.memberTables[c.id] = table
		log.Debugf("%s: %d member references", c, len(table))
	}

	if err := m.RewriteReferences(); err != nil {
		return err
	}
	m.closed = true
	return nil
}

func prune[T interface{ Kept() bool }](xs []T) []T {
	var out []T
	for _, x := range xs {
		if x.Kept() {
			out = append(out, x)
		}
	}
	return out
}

// RewriteReferences rewrites the member reference slots in every kept method's
// code to compacted table indices. It always starts from the loaded code, so
// running it again against the same tables yields the same bytes.
func (m *Model) RewriteReferences() error {
	if m.translation == nil {
		return Internalf("RewriteReferences before Optimize")
	}
	for _, c := range m.classes {
		owner := c.id
		mapper := func(slot uint16) (uint16, error) {
			r, err := m.Translate(owner, int(slot))
			if err != nil {
				return 0, err
			}
			return uint16(r.index), nil
		}
		for _, meth := range c.methods {
			if !meth.HasCode() {
				continue
			}
			code, err := bytecode.RewriteMemberSlots(meth.rawCode, mapper)
			if err != nil {
				return Internalf("rewriting %s: %v", meth, err)
			}
			meth.code = code
		}
	}
	return nil
}

// Translate maps a raw member reference slot of a class to its deduplicated
// reference. Valid after Optimize.
func (m *Model) Translate(owner ClassID, slot int) (*MemberRef, error) {
	r, ok := m.translation[RefKey{Owner: owner, Slot: slot}]
	if !ok {
		return nil, Internalf("no translation for member reference %d:%d", owner, slot)
	}
	return r, nil
}

// MemberTable returns the compacted member reference table of c. Valid after
// Optimize.
func (m *Model) MemberTable(c *Class) []*MemberRef {
	return append([]*MemberRef(nil), m.memberTables[c.id]...)
}

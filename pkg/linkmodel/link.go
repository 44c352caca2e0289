package linkmodel

// Link assigns code offsets, native indices, field addresses, instance sizes and
// link ids to everything kept, and resolves the targets of kept references.
// Signatures are numbered in first-appearance order over kept classes by id.
func (m *Model) Link() error {
	if err := m.checkOpen("Link"); err != nil {
		return err
	}
	kept := m.KeptClasses()
	if len(kept) == 0 || kept[0].id != 0 {
		return Internalf("root class is not kept")
	}

	offset, native := 0, 0
	for _, c := range kept {
		for _, meth := range c.methods {
			meth.codeOffset, meth.nativeIndex = -1, -1
			if !meth.kept {
				continue
			}
			if meth.kind == Native {
				meth.nativeIndex = native
				native++
			}
			if meth.HasCode() {
				meth.codeOffset = offset
				offset += len(meth.rawCode)
			}
		}
	}

	m.staticSize = 0
	for _, c := range kept {
		for _, f := range c.fields {
			if f.kept && f.static {
				f.address = m.staticSize
				m.staticSize += f.size
			}
		}
	}

	// a superclass always has a lower id than its subclasses
	for _, c := range m.classes {
		base := 0
		if super := m.SuperOf(c); super != nil {
			base = super.totalSize
		}
		c.ownSize = 0
		for _, f := range c.fields {
			if f.kept && !f.static {
				f.address = base + c.ownSize
				c.ownSize += f.size
			}
		}
		c.totalSize = base + c.ownSize
	}

	m.linkIDs = make(map[Signature]int)
	m.signatures = nil
	intern := func(sig Signature) int {
		if id, ok := m.linkIDs[sig]; ok {
			return id
		}
		id := len(m.signatures)
		m.linkIDs[sig] = id
		m.signatures = append(m.signatures, sig)
		return id
	}
	for _, c := range kept {
		for _, meth := range c.methods {
			if meth.kept {
				meth.linkID = intern(meth.sig)
			}
		}
		for _, f := range c.fields {
			if f.kept {
				f.linkID = intern(f.sig)
			}
		}
	}

	for _, c := range kept {
		for _, r := range c.refs {
			if !r.Kept() {
				continue
			}
			switch r := r.(type) {
			case *ClassRef:
				target, err := m.keptTarget(c, r.Target)
				if err != nil {
					return err
				}
				r.targetID = target.id
			case *MemberRef:
				target, err := m.keptTarget(c, r.TargetClass)
				if err != nil {
					return err
				}
				mf, err := m.FindMember(r.TargetClass, r.Sig)
				if err != nil {
					return Internalf("%s: kept reference to %s: %v", c.name, r.Member(), err)
				}
				if !mf.Kept() {
					return Internalf("%s: kept reference to dropped member %s", c.name, mf.Member())
				}
				r.targetID = target.id
				r.declaringID = mf.Owner().id
				r.linkID = intern(r.Sig)
			case *ConstantRef:
			}
		}
	}

	m.linked = true
	log.Infof("linked %d classes, %d signatures, %d bytes of code, %d static slots",
		len(kept), len(m.signatures), offset, m.staticSize)
	return nil
}

func (m *Model) keptTarget(owner *Class, name string) (*Class, error) {
	target, ok := m.byName[name]
	if !ok {
		return nil, Internalf("%s: reference to unregistered class %s", owner.name, name)
	}
	if !target.kept {
		return nil, Internalf("%s: kept reference to dropped class %s", owner.name, name)
	}
	return target, nil
}

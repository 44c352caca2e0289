package linker

import "github.com/daimatz/jvmlink/pkg/linkmodel"

// PropagateDescendants keeps every override of a kept method in a direct
// subclass or implementer, repeating until a pass keeps nothing new. Each pass
// descends one level of the hierarchy. Kept methods a class inherits without
// overriding are pushed down as well.
func (l *Linker) PropagateDescendants() error {
	for pass := 1; ; pass++ {
		added := 0
		for _, c := range l.model.KeptClasses() {
			sigs := l.keptSignatures(c)
			if len(sigs) == 0 {
				continue
			}
			for _, sub := range l.model.Subclasses(c) {
				if !sub.Kept() {
					continue
				}
				for _, sig := range sigs {
					mf, ok := sub.Declared(sig)
					if !ok || mf.Kept() {
						continue
					}
					meth, ok := mf.(*linkmodel.Method)
					if !ok || meth.Kind() == linkmodel.Constructor {
						continue
					}
					if err := l.Require(sub.Name(), sig.Name, sig.Descriptor); err != nil {
						return err
					}
					added++
				}
			}
		}
		log.Debugf("descendant pass %d kept %d overrides", pass, added)
		if added == 0 {
			return nil
		}
	}
}

// keptSignatures returns the signatures of c's kept overridable methods, of
// the kept methods of its direct interfaces, and of the kept methods c inherits
// from its superclass chain without redeclaring them.
func (l *Linker) keptSignatures(c *linkmodel.Class) []linkmodel.Signature {
	var sigs []linkmodel.Signature
	seen := make(map[linkmodel.Signature]bool)
	add := func(owner *linkmodel.Class) {
		for _, m := range owner.Methods() {
			sig := m.Member().Sig
			if !m.Kept() || m.IsStatic() || m.Kind() == linkmodel.Constructor || seen[sig] {
				continue
			}
			seen[sig] = true
			sigs = append(sigs, sig)
		}
	}
	add(c)
	for _, name := range c.Interfaces() {
		if iface, ok := l.model.Class(name); ok {
			add(iface)
		}
	}

	// the nearest declaration shadows the ones above it
	shadowed := make(map[linkmodel.Signature]bool)
	for _, m := range c.Methods() {
		shadowed[m.Member().Sig] = true
	}
	for super := l.model.SuperOf(c); super != nil; super = l.model.SuperOf(super) {
		for _, m := range super.Methods() {
			sig := m.Member().Sig
			if shadowed[sig] {
				continue
			}
			shadowed[sig] = true
			if !m.Kept() || m.IsStatic() || m.Kind() == linkmodel.Constructor || seen[sig] {
				continue
			}
			seen[sig] = true
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

package linker

import (
	"fmt"

	"github.com/daimatz/jvmlink/pkg/builtin"
	"github.com/daimatz/jvmlink/pkg/classpath"
	"github.com/daimatz/jvmlink/pkg/clinit"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// DefaultEntryMethod is the method the program starts in.
var DefaultEntryMethod = linkmodel.Signature{Name: "main", Descriptor: "()V"}

// Options configures a link run.
type Options struct {
	// Entry is the class declaring the static entry method.
	Entry string
	// EntryMethod defaults to main()V.
	EntryMethod linkmodel.Signature
	// Required members are kept whether or not anything refers to them.
	Required []linkmodel.Member
	VM       VMSeeds
}

// Result is a linked and optimized program.
type Result struct {
	Model *linkmodel.Model
	// Init is the synthesized method that runs every static initializer and
	// then the entry method.
	Init      *linkmodel.Method
	Main      linkmodel.Member
	InitOrder []string
	Builtins  []builtin.ID
	VM        VMSeeds
	Stats     Stats
}

// EntryOffset is the code offset the runtime starts executing at.
func (r *Result) EntryOffset() int {
	return r.Init.CodeOffset()
}

// Run links the program rooted at opts.Entry: it resolves the reachability
// closure of the VM seeds, the entry method and the required references, keeps
// overriding methods, schedules static initializers, then links and optimizes
// the model.
func Run(src classpath.Source, opts Options) (*Result, error) {
	if opts.Entry == "" {
		return nil, &linkmodel.MalformedSeedError{Ref: "", Reason: "no entry class"}
	}
	if opts.EntryMethod == (linkmodel.Signature{}) {
		opts.EntryMethod = DefaultEntryMethod
	}
	if opts.VM.Root == "" {
		opts.VM.Root = DefaultRoot
	}

	l := New(src)
	l.root = opts.VM.Root
	main := linkmodel.Member{Class: opts.Entry, Sig: opts.EntryMethod}

	log.Infof("resolving from %s", main)
	if _, err := l.LoadClass(l.root); err != nil {
		return nil, err
	}
	for _, name := range opts.VM.Arrays {
		if _, err := l.LoadClass(name); err != nil {
			return nil, fmt.Errorf("vm array: %w", err)
		}
	}
	for _, name := range opts.VM.Classes {
		if _, err := l.LoadClass(name); err != nil {
			return nil, fmt.Errorf("vm class: %w", err)
		}
	}
	if err := l.requireEntry(main); err != nil {
		return nil, err
	}
	for _, m := range opts.Required {
		if err := l.Require(m.Class, m.Sig.Name, m.Sig.Descriptor); err != nil {
			return nil, fmt.Errorf("required reference %s: %w", m, err)
		}
	}
	for _, m := range opts.VM.Members {
		if err := l.Require(m.Class, m.Sig.Name, m.Sig.Descriptor); err != nil {
			return nil, fmt.Errorf("vm reference %s: %w", m, err)
		}
	}
	if err := l.PropagateDescendants(); err != nil {
		return nil, err
	}
	stats := l.Stats()
	log.Infof("kept %d classes, %d methods, %d fields", stats.Classes, stats.Methods, stats.Fields)

	order, err := clinit.Schedule(l.model, opts.VM.Bootstrap)
	if err != nil {
		return nil, err
	}
	entry, err := clinit.Synthesize(l.model, opts.Entry, opts.EntryMethod, order)
	if err != nil {
		return nil, err
	}
	if err := l.model.Link(); err != nil {
		return nil, err
	}
	if err := l.model.Optimize(); err != nil {
		return nil, err
	}

	return &Result{
		Model:     l.model,
		Init:      entry,
		Main:      main,
		InitOrder: order,
		Builtins:  l.builtins.IDs(),
		VM:        opts.VM,
		Stats:     stats,
	}, nil
}

// requireEntry checks that the entry method exists and is static before
// requiring it.
func (l *Linker) requireEntry(main linkmodel.Member) error {
	if _, err := l.LoadClass(main.Class); err != nil {
		return err
	}
	mf, err := l.model.FindMember(main.Class, main.Sig)
	if err != nil {
		return err
	}
	ref := fmt.Sprintf("%s %s %s", main.Class, main.Sig.Name, main.Sig.Descriptor)
	meth, ok := mf.(*linkmodel.Method)
	if !ok || !main.Sig.IsMethod() {
		return &linkmodel.MalformedSeedError{Ref: ref, Reason: "entry is not a method"}
	}
	if !meth.IsStatic() {
		return &linkmodel.MalformedSeedError{Ref: ref, Reason: "entry method is not static"}
	}
	if meth.Owner().Name() != main.Class {
		return &linkmodel.MalformedSeedError{Ref: ref, Reason: "entry method is inherited from " + meth.Owner().Name()}
	}
	return l.Require(main.Class, main.Sig.Name, main.Sig.Descriptor)
}

// Package builtin holds the fixed catalog of runtime-constructed symbols: the
// exception classes and members the interpreter instantiates on its own, without
// any construction site in the linked program.
package builtin

import (
	"fmt"
	"sort"
)

// ID identifies a catalog entry.
type ID int

// Catalog entries
const (
	NullPointerClass ID = iota
	NullPointerInit
	ArrayIndexClass
	ArrayIndexInit
	ArithmeticClass
	ArithmeticInit
	OutOfMemoryClass
	OutOfMemoryInit
	OutOfMemoryGetInstance
	NegativeArraySizeClass
	NegativeArraySizeInit
	ClassCastClass
	ClassCastInit

	numEntries
)

// Entry is one immutable catalog record. Class entries have an empty Member.
type Entry struct {
	ID         ID
	Name       string
	Class      string
	Member     string
	Descriptor string
	// ClassEntry is the entry of the owning class (itself for class entries).
	ClassEntry ID
	// Steps are further entries that must be kept together with this one.
	Steps []ID
}

// IsMember reports whether the entry names a method rather than a class.
func (e Entry) IsMember() bool {
	return e.Member != ""
}

func (e Entry) String() string {
	if e.IsMember() {
		return e.Class + "." + e.Member + e.Descriptor
	}
	return e.Class
}

var catalog = [numEntries]Entry{
	NullPointerClass:       {Name: "NULL_POINTER_EXCEPTION", Class: "java/lang/NullPointerException"},
	NullPointerInit:        {Name: "NULL_POINTER_EXCEPTION_INIT", Class: "java/lang/NullPointerException", Member: "<init>", Descriptor: "()V", ClassEntry: NullPointerClass},
	ArrayIndexClass:        {Name: "ARRAY_INDEX_OUT_OF_BOUNDS_EXCEPTION", Class: "java/lang/ArrayIndexOutOfBoundsException"},
	ArrayIndexInit:         {Name: "ARRAY_INDEX_OUT_OF_BOUNDS_EXCEPTION_INIT", Class: "java/lang/ArrayIndexOutOfBoundsException", Member: "<init>", Descriptor: "(I)V", ClassEntry: ArrayIndexClass},
	ArithmeticClass:        {Name: "ARITHMETIC_EXCEPTION", Class: "java/lang/ArithmeticException"},
	ArithmeticInit:         {Name: "ARITHMETIC_EXCEPTION_INIT", Class: "java/lang/ArithmeticException", Member: "<init>", Descriptor: "(Ljava/lang/String;)V", ClassEntry: ArithmeticClass},
	OutOfMemoryClass:       {Name: "OUT_OF_MEMORY_ERROR", Class: "java/lang/OutOfMemoryError"},
	OutOfMemoryInit:        {Name: "OUT_OF_MEMORY_ERROR_INIT", Class: "java/lang/OutOfMemoryError", Member: "<init>", Descriptor: "()V", ClassEntry: OutOfMemoryClass, Steps: []ID{OutOfMemoryGetInstance}},
	OutOfMemoryGetInstance: {Name: "OUT_OF_MEMORY_ERROR_GET_INSTANCE", Class: "java/lang/OutOfMemoryError", Member: "getInstance", Descriptor: "()Ljava/lang/OutOfMemoryError;", ClassEntry: OutOfMemoryClass},
	NegativeArraySizeClass: {Name: "NEGATIVE_ARRAY_SIZE_EXCEPTION", Class: "java/lang/NegativeArraySizeException"},
	NegativeArraySizeInit:  {Name: "NEGATIVE_ARRAY_SIZE_EXCEPTION_INIT", Class: "java/lang/NegativeArraySizeException", Member: "<init>", Descriptor: "()V", ClassEntry: NegativeArraySizeClass},
	ClassCastClass:         {Name: "CLASS_CAST_EXCEPTION", Class: "java/lang/ClassCastException"},
	ClassCastInit:          {Name: "CLASS_CAST_EXCEPTION_INIT", Class: "java/lang/ClassCastException", Member: "<init>", Descriptor: "()V", ClassEntry: ClassCastClass},
}

func init() {
	for i := range catalog {
		catalog[i].ID = ID(i)
		if !catalog[i].IsMember() {
			catalog[i].ClassEntry = ID(i)
		}
	}
}

// Lookup returns the entry for id. It panics on an id outside the catalog.
func Lookup(id ID) Entry {
	if id < 0 || id >= numEntries {
		panic(fmt.Sprintf("builtin: unknown catalog id %d", id))
	}
	e := catalog[id]
	e.Steps = append([]ID(nil), e.Steps...)
	return e
}

// Entries returns a copy of the whole catalog in id order.
func Entries() []Entry {
	out := make([]Entry, 0, numEntries)
	for id := ID(0); id < numEntries; id++ {
		out = append(out, Lookup(id))
	}
	return out
}

// Expand returns id followed by its steps, transitively, without duplicates.
func Expand(id ID) []ID {
	var out []ID
	seen := map[ID]bool{}
	stack := []ID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		steps := catalog[cur].Steps
		for i := len(steps) - 1; i >= 0; i-- {
			stack = append(stack, steps[i])
		}
	}
	return out
}

// KeptSet records which catalog entries the linked program needs. It is the only
// mutable part of the catalog and grows monotonically.
type KeptSet struct {
	kept map[ID]bool
}

// NewKeptSet returns an empty set.
func NewKeptSet() *KeptSet {
	return &KeptSet{kept: make(map[ID]bool)}
}

// Keep marks id, all of its steps and their class entries.
func (s *KeptSet) Keep(id ID) {
	for _, e := range Expand(id) {
		s.kept[e] = true
		s.kept[catalog[e].ClassEntry] = true
	}
}

// Kept reports whether id has been kept.
func (s *KeptSet) Kept(id ID) bool {
	return s.kept[id]
}

// IDs returns the kept ids in ascending order.
func (s *KeptSet) IDs() []ID {
	out := make([]ID, 0, len(s.kept))
	for id := range s.kept {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of kept entries.
func (s *KeptSet) Len() int {
	return len(s.kept)
}

package builtin

import (
	"reflect"
	"testing"
)

func TestEntriesAreConsistent(t *testing.T) {
	for _, e := range Entries() {
		cls := Lookup(e.ClassEntry)
		if cls.IsMember() {
			t.Errorf("%s: class entry %s is a member", e.Name, cls.Name)
		}
		if cls.Class != e.Class {
			t.Errorf("%s: class entry names %s, want %s", e.Name, cls.Class, e.Class)
		}
		if e.IsMember() && e.Descriptor == "" {
			t.Errorf("%s: member entry without descriptor", e.Name)
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	e := Lookup(OutOfMemoryInit)
	e.Steps[0] = ClassCastInit
	if got := Lookup(OutOfMemoryInit).Steps[0]; got != OutOfMemoryGetInstance {
		t.Errorf("catalog was mutated through Lookup: step = %d", got)
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want []ID
	}{
		{"single", NullPointerInit, []ID{NullPointerInit}},
		{"multi-step", OutOfMemoryInit, []ID{OutOfMemoryInit, OutOfMemoryGetInstance}},
		{"class", ClassCastClass, []ID{ClassCastClass}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expand(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestKeptSetKeepsClassAndSteps(t *testing.T) {
	s := NewKeptSet()
	s.Keep(OutOfMemoryInit)

	want := []ID{OutOfMemoryClass, OutOfMemoryInit, OutOfMemoryGetInstance}
	if got := s.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if s.Kept(NullPointerClass) {
		t.Error("unrelated entry was kept")
	}

	s.Keep(OutOfMemoryInit)
	if s.Len() != 3 {
		t.Errorf("Len() = %d after repeated Keep, want 3", s.Len())
	}
}

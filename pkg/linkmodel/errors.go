package linkmodel

import (
	"fmt"
	"strings"
)

// LoaderError reports a class that could not be found or read.
type LoaderError struct {
	Class string
	Err   error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Class, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// UnresolvedMemberError reports a member absent from the class, its superclass
// chain and all of its interfaces.
type UnresolvedMemberError struct {
	Class string
	Sig   Signature
}

func (e *UnresolvedMemberError) Error() string {
	return fmt.Sprintf("unresolved reference: %s.%s%s", e.Class, e.Sig.Name, e.Sig.Descriptor)
}

// CyclicInitError reports a cycle between static initializers. Cycle lists the
// classes on the cycle, starting and ending with Class.
type CyclicInitError struct {
	Class string
	Cycle []string
}

func (e *CyclicInitError) Error() string {
	if len(e.Cycle) == 0 {
		return fmt.Sprintf("cyclic static initialization involving %s", e.Class)
	}
	return fmt.Sprintf("cyclic static initialization involving %s: %s", e.Class, strings.Join(e.Cycle, " -> "))
}

// MalformedSeedError reports a seed reference that cannot be used.
type MalformedSeedError struct {
	Ref    string
	Reason string
}

func (e *MalformedSeedError) Error() string {
	return fmt.Sprintf("malformed seed reference %q: %s", e.Ref, e.Reason)
}

// InternalError reports a broken invariant of the link model. It indicates a
// bug in the linker, not in its input.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal consistency error: " + e.Msg
}

// Internalf builds an InternalError.
func Internalf(format string, args ...any) error {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

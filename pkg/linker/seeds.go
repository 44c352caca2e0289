package linker

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/daimatz/jvmlink/pkg/classfile"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// ParseReference parses a required reference of the form
// "<class> <member> <descriptor>". Class names may use dots or slashes.
func ParseReference(s string) (linkmodel.Member, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return linkmodel.Member{}, &linkmodel.MalformedSeedError{Ref: s, Reason: fmt.Sprintf("want 3 tokens, got %d", len(fields))}
	}
	class, name, desc := strings.ReplaceAll(fields[0], ".", "/"), fields[1], fields[2]
	if strings.HasPrefix(desc, "(") {
		if _, _, err := classfile.ParseMethodDescriptor(desc); err != nil {
			return linkmodel.Member{}, &linkmodel.MalformedSeedError{Ref: s, Reason: err.Error()}
		}
	} else if !classfile.ValidFieldType(desc) {
		return linkmodel.Member{}, &linkmodel.MalformedSeedError{Ref: s, Reason: fmt.Sprintf("bad descriptor %q", desc)}
	}
	return linkmodel.Member{Class: class, Sig: linkmodel.Signature{Name: name, Descriptor: desc}}, nil
}

// ParseReferences reads one reference per line. Text after '#' is a comment and
// blank lines are skipped.
func ParseReferences(r io.Reader) ([]linkmodel.Member, error) {
	var refs []linkmodel.Member
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := ParseReference(line)
		if err != nil {
			return nil, err
		}
		refs = append(refs, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading references: %w", err)
	}
	return refs, nil
}

// ParseReferenceList parses every entry of refs.
func ParseReferenceList(refs []string) ([]linkmodel.Member, error) {
	out := make([]linkmodel.Member, 0, len(refs))
	for _, s := range refs {
		m, err := ParseReference(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// VMSeeds lists what the target runtime needs regardless of the program.
type VMSeeds struct {
	Root string
	// Bootstrap is the metaclass whose initializer runs first.
	Bootstrap string
	Classes   []string
	Members   []linkmodel.Member
	Arrays    []string
}

// DefaultVMSeeds returns the seeds of the standard runtime.
func DefaultVMSeeds() VMSeeds {
	members, err := ParseReferenceList([]string{
		"java/lang/Class aClassId I",
		"java/lang/ArithmeticException <init> (Ljava/lang/String;)V",
		"java/lang/ArrayIndexOutOfBoundsException <init> (I)V",
		"java/lang/Class aAllClasses [Ljava/lang/Class;",
		"java/lang/ClassCastException <init> ()V",
		"java/lang/NullPointerException <init> ()V",
		"java/lang/OutOfMemoryError <init> ()V",
		"java/lang/OutOfMemoryError getInstance ()Ljava/lang/OutOfMemoryError;",
		"java/lang/NegativeArraySizeException <init> ()V",
		"java/lang/String value [C",
		"java/lang/Thread aAllThreads Ljava/lang/Thread;",
		"java/lang/Thread aContext [B",
		"java/lang/Thread aCurrentThread Ljava/lang/Thread;",
		"java/lang/Thread aNextThread Ljava/lang/Thread;",
		"java/lang/Thread aStack [B",
		"java/lang/Thread aState I",
		"java/lang/Thread runFromNative ()V",
	})
	if err != nil {
		panic(err)
	}
	return VMSeeds{
		Root:      DefaultRoot,
		Bootstrap: "java/lang/Class",
		Classes: []string{
			"java/lang/ArrayIndexOutOfBoundsException",
			"java/lang/ArithmeticException",
			"java/lang/Class",
			"java/lang/ClassCastException",
			"java/lang/NegativeArraySizeException",
			"java/lang/NullPointerException",
			"java/lang/OutOfMemoryError",
			"java/lang/String",
			"java/lang/Thread",
		},
		Members: members,
		Arrays:  []string{"[C", "[B", "[I", "[J", "[Ljava/lang/Object;", "[Ljava/lang/Class;"},
	}
}

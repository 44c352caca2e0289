// Package native names and types the C functions that implement native Java
// methods, following the JNI naming scheme.
package native

import (
	"fmt"
	"strings"

	"github.com/daimatz/jvmlink/pkg/classfile"
)

// Symbol returns the C function name implementing class.method, such as
// Java_java_lang_Object_hashCode.
func Symbol(class, method string) string {
	return "Java_" + strings.ReplaceAll(class, "/", "_") + "_" + method
}

// CType maps a field type or "V" to the C type the runtime passes it as.
// Types without a dedicated mapping travel as object references.
func CType(fieldType string) string {
	switch fieldType {
	case "I":
		return "jint"
	case "J":
		return "jlong"
	case "C":
		return "jchar"
	case "Z":
		return "BOOL"
	case "V":
		return "void"
	case "Ljava/lang/String;":
		return "jstring"
	}
	return "jobject"
}

// Binding describes one native method of the linked program.
type Binding struct {
	// Index is the method's position in the native table.
	Index      int
	Class      string
	Method     string
	Descriptor string
	Static     bool
}

// Symbol returns the C function name of b.
func (b Binding) Symbol() string {
	return Symbol(b.Class, b.Method)
}

// Prototype renders the JNI declaration of b, for example
//
//	JNIEXPORT jint JNICALL Java_app_Main_add(JNIEnv *, jclass, jint, jint);
func (b Binding) Prototype() (string, error) {
	params, ret, err := classfile.ParseMethodDescriptor(b.Descriptor)
	if err != nil {
		return "", fmt.Errorf("native %s.%s: %w", b.Class, b.Method, err)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "JNIEXPORT %s JNICALL %s(JNIEnv *", CType(ret), b.Symbol())
	if b.Static {
		sb.WriteString(", jclass")
	} else {
		sb.WriteString(", jobject")
	}
	for _, p := range params {
		sb.WriteString(", ")
		sb.WriteString(CType(p))
	}
	sb.WriteString(");")
	return sb.String(), nil
}

package emit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var macroReplacer = strings.NewReplacer(
	"#", "_", "/", "_", "<", "_", ">", "_", "(", "_", ")", "_", "[", "_", ";", "_", ".", "_",
)

// ClassMacro returns the C macro naming the id of class.
func ClassMacro(class string) string {
	return "CLASS_ID_" + macroReplacer.Replace(class)
}

// LinkMacro returns the C macro naming the link id of a member.
func LinkMacro(class, name, desc string) string {
	return "LINK_ID_" + macroReplacer.Replace(class+"#"+name+"#"+desc)
}

// WriteHeader writes a C header defining the class id of every class and the
// link id of every method, for use by native code.
func WriteHeader(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "/* generated by jvmlink, image %s */\n", img.BuildID)
	fmt.Fprintln(bw, "#ifndef JVMLINK_IDS_H")
	fmt.Fprintln(bw, "#define JVMLINK_IDS_H")
	fmt.Fprintln(bw)
	for _, c := range img.Classes {
		fmt.Fprintf(bw, "#define %s %d\n", ClassMacro(c.Name), c.ID)
	}
	fmt.Fprintln(bw)
	for _, c := range img.Classes {
		for _, m := range c.Methods {
			fmt.Fprintf(bw, "#define %s %d\n", LinkMacro(c.Name, m.Name, m.Descriptor), m.LinkID)
		}
	}
	if len(img.Natives) > 0 {
		fmt.Fprintln(bw)
		for _, n := range img.Natives {
			fmt.Fprintln(bw, n.Prototype)
		}
	}
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "#endif")
	return bw.Flush()
}

package emit

import (
	"bufio"
	"fmt"
	"io"
)

// WriteTrace writes the line table of img, one "PC LINE method" line per entry
// in pc order, after a "::" header.
func WriteTrace(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, ":: %s\n", img.BuildID)
	fmt.Fprintln(bw, ":: PC SourceLine Method")
	for _, ln := range img.Lines {
		fmt.Fprintf(bw, "%d  %d  %s\n", ln.PC, ln.Line, ln.Method)
	}
	return bw.Flush()
}

// Package retrace maps absolute program counters reported by the runtime back to
// methods and source lines using the trace file written at link time.
package retrace

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Entry is one line of a trace file.
type Entry struct {
	PC     int
	Line   int
	Method string
}

func (e Entry) String() string {
	return fmt.Sprintf("%04x->%s:%d", e.PC, e.Method, e.Line)
}

// Table is a trace file sorted by pc.
type Table struct {
	entries []Entry
}

// Parse reads a trace file. Blank lines and lines starting with "::" are
// skipped; every other line must hold exactly the fields PC, LINE and METHOD.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "::") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("trace line %d: three fields expected, got %q", n, line)
		}
		pc, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad pc: %w", n, err)
		}
		src, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad source line: %w", n, err)
		}
		t.entries = append(t.entries, Entry{PC: pc, Line: src, Method: fields[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(t.entries, func(i, j int) bool { return t.entries[i].PC < t.entries[j].PC })
	return t, nil
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Lookup returns the closest entry at or before pc.
func (t *Table) Lookup(pc int) (Entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].PC > pc })
	if i == 0 {
		return Entry{}, false
	}
	return t.entries[i-1], true
}

// ParsePCs extracts the pcs of a runtime report such as "trace: 12, 40, 7".
// Everything up to the last colon is ignored.
func ParsePCs(s string) ([]int, error) {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	var pcs []int
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		pc, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("not a pc: %q", tok)
		}
		pcs = append(pcs, pc)
	}
	return pcs, nil
}

// Write resolves each pc and writes one line per pc to w.
func (t *Table) Write(w io.Writer, pcs []int) error {
	for _, pc := range pcs {
		e, ok := t.Lookup(pc)
		if !ok {
			return fmt.Errorf("pc %d precedes the first trace entry", pc)
		}
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return nil
}

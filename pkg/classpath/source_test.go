package classpath

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/daimatz/jvmlink/pkg/classfile"
	"github.com/daimatz/jvmlink/pkg/classfile/classfiletest"
)

func sampleClass(name string) []byte {
	b := classfiletest.New(name, "java/lang/Object")
	ref := b.Methodref("app/Helper", "compute", "(IJ)I")
	b.Fieldref("app/Helper", "total", "J")
	b.Int(-3)
	b.Double(2.5)
	b.String("hello")
	b.AddField(classfiletest.Field{Name: "x", Desc: "J"})
	b.AddField(classfiletest.Field{Flags: classfile.AccStatic, Name: "y", Desc: "I"})
	b.AddMethod(classfiletest.Method{
		Flags:     classfile.AccPublic,
		Name:      "run",
		Desc:      "(IJ)V",
		MaxLocals: 4,
		Code:      []byte{0xB8, byte(ref >> 8), byte(ref), 0x57, 0xB1},
		Lines:     []classfile.LineNumber{{StartPC: 0, Line: 3}},
	})
	b.AddMethod(classfiletest.Method{Flags: classfile.AccAbstract | classfile.AccPublic, Name: "todo", Desc: "()V"})
	return b.Bytes()
}

func writeArchive(t *testing.T, path string, prefix []byte, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(prefix)
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalize(t *testing.T) {
	cf, err := classfile.ParseBytes(sampleClass("app/Sample"))
	if err != nil {
		t.Fatal(err)
	}
	d, err := Normalize(cf)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if d.Name != "app/Sample" || d.Super != "java/lang/Object" || d.Interface {
		t.Errorf("header = %q %q %v", d.Name, d.Super, d.Interface)
	}

	kinds := map[PoolKind]int{}
	for _, e := range d.Pool {
		kinds[e.Kind]++
		switch e.Kind {
		case PoolMember:
			if e.Name == "compute" && (e.Class != "app/Helper" || e.Descriptor != "(IJ)I" || e.Field) {
				t.Errorf("method entry = %+v", e)
			}
			if e.Name == "total" && !e.Field {
				t.Errorf("field entry not flagged: %+v", e)
			}
		case PoolInt:
			if e.Value != int32(-3) {
				t.Errorf("int value = %v", e.Value)
			}
		case PoolDouble:
			if e.Value != 2.5 {
				t.Errorf("double value = %v", e.Value)
			}
		case PoolString:
			if e.Value != "hello" {
				t.Errorf("string value = %v", e.Value)
			}
		}
	}
	if kinds[PoolMember] != 2 || kinds[PoolInt] != 1 || kinds[PoolDouble] != 1 || kinds[PoolString] != 1 {
		t.Errorf("pool kinds = %v", kinds)
	}
	// this, super, Helper
	if kinds[PoolClass] != 3 {
		t.Errorf("class entries = %d, want 3", kinds[PoolClass])
	}

	if len(d.Fields) != 2 || d.Fields[0].Size != 2 || d.Fields[1].Size != 1 || !d.Fields[1].Static {
		t.Errorf("fields = %+v", d.Fields)
	}
	run := d.Methods[0]
	if run.ArgSlots != 4 || run.MaxLocals != 4 || len(run.Lines) != 1 || run.Lines[0].Line != 3 {
		t.Errorf("run = %+v", run)
	}
	if !d.Methods[1].Abstract || d.Methods[1].Code != nil {
		t.Errorf("todo = %+v", d.Methods[1])
	}
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app", "Sample.class"), sampleClass("app/Sample"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &DirSource{Root: root}
	d, err := src.Load("app/Sample")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "app/Sample" {
		t.Errorf("Name = %q", d.Name)
	}
	if _, err := src.Load("app/Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing class error = %v, want ErrNotFound", err)
	}
}

func TestArchiveSource(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "app.jar")
	jmod := filepath.Join(dir, "java.base.jmod")
	writeArchive(t, jar, nil, map[string][]byte{"app/Sample.class": sampleClass("app/Sample")})
	writeArchive(t, jmod, jmodMagic, map[string][]byte{
		"classes/java/lang/Base.class": sampleClass("java/lang/Base"),
		"lib/ignored.so":               {1, 2, 3},
	})

	tests := []struct {
		path, class string
	}{
		{jar, "app/Sample"},
		{jmod, "java/lang/Base"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			src := NewArchiveSource(tt.path)
			d, err := src.Load(tt.class)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if d.Name != tt.class {
				t.Errorf("Name = %q, want %q", d.Name, tt.class)
			}
			if _, err := src.Load("nope/Nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing class error = %v", err)
			}
		})
	}
}

func TestPathOrderAndCache(t *testing.T) {
	first := NewMemorySource()
	second := NewMemorySource()
	first.Add(&Descriptor{Name: "a/A", Super: "java/lang/Object"})
	second.Add(&Descriptor{Name: "a/A", Super: "other/Base"})
	second.Add(&Descriptor{Name: "b/B", Super: "java/lang/Object"})

	p := NewPath(first, second)
	d, err := p.Load("a/A")
	if err != nil {
		t.Fatal(err)
	}
	if d.Super != "java/lang/Object" {
		t.Errorf("first source should win, got super %q", d.Super)
	}
	if _, err := p.Load("b/B"); err != nil {
		t.Errorf("fallthrough to second source: %v", err)
	}

	first.Add(&Descriptor{Name: "a/A", Super: "changed/Super"})
	d, _ = p.Load("a/A")
	if d.Super != "java/lang/Object" {
		t.Error("Path did not cache the first lookup")
	}

	if _, err := p.Load("c/C"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing class error = %v", err)
	}
}

func TestPathRejectsMismatchedName(t *testing.T) {
	src := NewMemorySource()
	src.classes["a/A"] = &Descriptor{Name: "a/Other"}
	if _, err := NewPath(src).Load("a/A"); err == nil {
		t.Fatal("expected error for mismatched class name")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "lib.jar")
	writeArchive(t, jar, nil, map[string][]byte{"app/Sample.class": sampleClass("app/Sample")})

	p, err := Open([]string{dir, jar})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.Load("app/Sample"); err != nil {
		t.Errorf("Load through Open: %v", err)
	}

	bad := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(bad, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open([]string{bad}); err == nil {
		t.Error("expected error for unsupported entry")
	}
	if _, err := Open([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing entry")
	}
}

package emit

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/jvmlink/pkg/bytecode"
	"github.com/daimatz/jvmlink/pkg/classpath"
	"github.com/daimatz/jvmlink/pkg/linker"
)

// program is app/Main whose main calls app/Helper.compute, loads the int 42,
// calls the native Main.hash and guards the first instructions with a handler
// for app/Failure. compute reads the static field Helper.count.
func program() *classpath.MemorySource {
	object := &classpath.Descriptor{
		Name:     "java/lang/Object",
		Pool:     []classpath.PoolEntry{{Slot: 1, Kind: classpath.PoolClass, Class: "java/lang/Object"}},
		PoolSize: 2,
		Methods:  []classpath.Method{{Name: "<init>", Descriptor: "()V", Code: []byte{bytecode.OpReturn}, MaxLocals: 1, ArgSlots: 1}},
	}
	main := &classpath.Descriptor{
		Name:  "app/Main",
		Super: "java/lang/Object",
		Pool: []classpath.PoolEntry{
			{Slot: 1, Kind: classpath.PoolClass, Class: "app/Main"},
			{Slot: 2, Kind: classpath.PoolClass, Class: "java/lang/Object"},
			{Slot: 3, Kind: classpath.PoolMember, Class: "app/Helper", Name: "compute", Descriptor: "()I"},
			{Slot: 4, Kind: classpath.PoolInt, Value: int32(42)},
			{Slot: 5, Kind: classpath.PoolClass, Class: "app/Failure"},
			{Slot: 6, Kind: classpath.PoolMember, Class: "app/Main", Name: "hash", Descriptor: "()I"},
		},
		PoolSize: 7,
		Methods: []classpath.Method{
			{
				Name: "main", Descriptor: "()V", Static: true,
				Code: []byte{
					bytecode.OpInvokestatic, 0, 3,
					bytecode.OpLdc, 4,
					bytecode.OpIadd,
					bytecode.OpPop,
					bytecode.OpInvokestatic, 0, 6,
					bytecode.OpPop,
					bytecode.OpReturn,
				},
				Lines:    []classpath.Line{{PC: 0, Line: 10}, {PC: 5, Line: 11}},
				Handlers: []classpath.Handler{{StartPC: 0, EndPC: 5, HandlerPC: 11, CatchSlot: 5}},
			},
			{Name: "hash", Descriptor: "()I", Static: true, Native: true},
		},
	}
	failure := &classpath.Descriptor{
		Name:     "app/Failure",
		Super:    "java/lang/Object",
		Pool:     []classpath.PoolEntry{{Slot: 1, Kind: classpath.PoolClass, Class: "app/Failure"}, {Slot: 2, Kind: classpath.PoolClass, Class: "java/lang/Object"}},
		PoolSize: 3,
	}
	helper := &classpath.Descriptor{
		Name:  "app/Helper",
		Super: "java/lang/Object",
		Pool: []classpath.PoolEntry{
			{Slot: 1, Kind: classpath.PoolClass, Class: "app/Helper"},
			{Slot: 2, Kind: classpath.PoolClass, Class: "java/lang/Object"},
			{Slot: 3, Kind: classpath.PoolMember, Class: "app/Helper", Name: "count", Descriptor: "I", Field: true},
		},
		PoolSize: 4,
		Fields:   []classpath.Field{{Name: "count", Descriptor: "I", Static: true, Size: 1}},
		Methods: []classpath.Method{
			{
				Name: "compute", Descriptor: "()I", Static: true,
				Code:  []byte{bytecode.OpGetstatic, 0, 3, bytecode.OpIreturn},
				Lines: []classpath.Line{{PC: 0, Line: 3}},
			},
			{Name: "dead", Descriptor: "()V", Static: true, Code: []byte{bytecode.OpReturn}},
		},
	}

	src := classpath.NewMemorySource()
	for _, d := range []*classpath.Descriptor{object, main, failure, helper} {
		src.Add(d)
	}
	return src
}

func build(t *testing.T) *Image {
	t.Helper()
	r, err := linker.Run(program(), linker.Options{Entry: "app/Main"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	img, err := Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return img
}

func class(t *testing.T, img *Image, name string) ClassInfo {
	t.Helper()
	for _, c := range img.Classes {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("class %s missing from image", name)
	return ClassInfo{}
}

func TestBuild(t *testing.T) {
	img := build(t)

	for i, c := range img.Classes {
		if c.ID != i {
			t.Errorf("%s has id %d at index %d", c.Name, c.ID, i)
		}
	}
	if img.Classes[0].Name != "java/lang/Object" || img.Classes[0].Super != -1 {
		t.Errorf("root = %+v", img.Classes[0])
	}

	// main (12 bytes), the entry method (4 bytes), compute (4 bytes)
	if len(img.Code) != 20 {
		t.Errorf("code array has %d bytes, want 20", len(img.Code))
	}
	if img.EntryOffset != 12 {
		t.Errorf("entry offset = %d, want 12", img.EntryOffset)
	}
	if img.StaticSize != 1 {
		t.Errorf("static size = %d, want 1", img.StaticSize)
	}

	main := class(t, img, "app/Main")
	helper := class(t, img, "app/Helper")
	failure := class(t, img, "app/Failure")

	if len(main.MemberRefs) != 3 {
		t.Errorf("Main member table = %+v", main.MemberRefs)
	}
	if got := main.MemberRefs[0]; got.Class != helper.ID || got.Declaring != helper.ID {
		t.Errorf("first Main member ref = %+v", got)
	}
	if !bytes.Equal(img.Code[:3], []byte{bytecode.OpInvokestatic, 0, 0}) {
		t.Errorf("main starts with % x", img.Code[:3])
	}

	for i := 1; i < len(main.Methods); i++ {
		if main.Methods[i-1].LinkID > main.Methods[i].LinkID {
			t.Errorf("Main methods not sorted by link id: %+v", main.Methods)
		}
	}
	if len(helper.Methods) != 1 || helper.Methods[0].Name != "compute" {
		t.Errorf("Helper methods = %+v", helper.Methods)
	}
	if len(helper.Fields) != 1 || !helper.Fields[0].Static || helper.Fields[0].Address != 0 {
		t.Errorf("Helper fields = %+v", helper.Fields)
	}
	if len(main.Constants) != 1 || main.Constants[0].Slot != 4 || main.Constants[0].Int != 42 {
		t.Errorf("Main constants = %+v", main.Constants)
	}

	wantHandler := Handler{Class: main.ID, StartPC: 0, EndPC: 5, HandlerPC: 11, Catch: failure.ID}
	if len(img.Handlers) != 1 || img.Handlers[0] != wantHandler {
		t.Errorf("handlers = %+v, want %+v", img.Handlers, wantHandler)
	}

	wantLines := []Line{
		{PC: 0, Line: 10, Method: "app/Main.main()V"},
		{PC: 5, Line: 11, Method: "app/Main.main()V"},
		{PC: 16, Line: 3, Method: "app/Helper.compute()I"},
	}
	if fmt.Sprint(img.Lines) != fmt.Sprint(wantLines) {
		t.Errorf("lines = %+v, want %+v", img.Lines, wantLines)
	}

	if len(img.Natives) != 1 {
		t.Fatalf("natives = %+v", img.Natives)
	}
	n := img.Natives[0]
	if n.Index != 0 || n.Class != main.ID || n.Symbol != "Java_app_Main_hash" ||
		n.Prototype != "JNIEXPORT jint JNICALL Java_app_Main_hash(JNIEnv *, jclass);" {
		t.Errorf("native = %+v", n)
	}
}

func TestEncodingIsReproducible(t *testing.T) {
	a, b := build(t), build(t)
	if a.BuildID == "" || a.BuildID != b.BuildID {
		t.Fatalf("build ids %q and %q", a.BuildID, b.BuildID)
	}
	da, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(da, db) {
		t.Error("equal programs encode differently")
	}

	back, err := ReadImage(bytes.NewReader(da))
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	again, err := Marshal(back)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(da, again) {
		t.Error("decoded image encodes differently")
	}
	if id, _ := buildID(back); id != a.BuildID {
		t.Errorf("recomputed build id %s, want %s", id, a.BuildID)
	}
}

func TestWriteTrace(t *testing.T) {
	img := build(t)
	var buf bytes.Buffer
	if err := WriteTrace(&buf, img); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("trace:\n%s", buf.String())
	}
	for _, l := range lines[:2] {
		if !strings.HasPrefix(l, "::") {
			t.Errorf("header line %q", l)
		}
	}
	if lines[2] != "0  10  app/Main.main()V" || lines[4] != "16  3  app/Helper.compute()I" {
		t.Errorf("trace body = %q", lines[2:])
	}
}

func TestMacros(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ClassMacro("java/lang/Object"), "CLASS_ID_java_lang_Object"},
		{ClassMacro("[Ljava/lang/String;"), "CLASS_ID__Ljava_lang_String_"},
		{LinkMacro("app/Main", "main", "()V"), "LINK_ID_app_Main_main___V"},
		{LinkMacro("app/Main", "<init>", "(I)V"), "LINK_ID_app_Main__init___I_V"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestWriteHeader(t *testing.T) {
	img := build(t)
	var buf bytes.Buffer
	if err := WriteHeader(&buf, img); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	main := class(t, img, "app/Main")
	for _, want := range []string{
		fmt.Sprintf("#define CLASS_ID_app_Main %d\n", main.ID),
		"#define CLASS_ID_java_lang_Object 0\n",
		"#define LINK_ID_app_Main_main___V ",
		"JNIEXPORT jint JNICALL Java_app_Main_hash(JNIEnv *, jclass);\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("header lacks %q:\n%s", want, out)
		}
	}
}

func TestFilesEmit(t *testing.T) {
	dir := t.TempDir()
	out := Files{
		Image:  filepath.Join(dir, "build", "app.img"),
		Trace:  filepath.Join(dir, "build", "app.trace"),
		Header: filepath.Join(dir, "app_ids.h"),
	}
	r, err := linker.Run(program(), linker.Options{Entry: "app/Main"})
	if err != nil {
		t.Fatal(err)
	}
	img, err := Emit(r, out)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	f, err := os.Open(out.Image)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, err := ReadImage(f)
	if err != nil {
		t.Fatal(err)
	}
	if back.BuildID != img.BuildID || back.EntryOffset != img.EntryOffset {
		t.Errorf("read back %s@%d, want %s@%d", back.BuildID, back.EntryOffset, img.BuildID, img.EntryOffset)
	}
	for _, p := range []string{out.Trace, out.Header} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	// skipped outputs are not created
	only := Files{Trace: filepath.Join(dir, "only.trace")}
	if err := only.Emit(img); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "only.img")); !os.IsNotExist(err) {
		t.Errorf("unexpected image file: %v", err)
	}
}

package classpath

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/daimatz/jvmlink/pkg/classfile"
)

var log = commonlog.GetLogger("jvmlink.classpath")

// ErrNotFound is wrapped by every source when a class does not exist in it.
var ErrNotFound = errors.New("class not found")

// Source loads class descriptors by internal class name (e.g. "java/lang/String").
type Source interface {
	Load(name string) (*Descriptor, error)
}

func notFound(name, where string) error {
	return fmt.Errorf("%s in %s: %w", name, where, ErrNotFound)
}

// DirSource loads classes from a directory tree of .class files.
type DirSource struct {
	Root string
}

func (s *DirSource) Load(name string) (*Descriptor, error) {
	path := filepath.Join(s.Root, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(name, s.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("dir: parsing %s: %w", path, err)
	}
	return Normalize(cf)
}

// jmodMagic prefixes the zip payload of a JDK jmod file.
var jmodMagic = []byte("JM\x01\x00")

// ArchiveSource loads classes from a jar or jmod file. The whole archive is read
// into memory on first use.
type ArchiveSource struct {
	Path    string
	entries map[string]*zip.File
}

// NewArchiveSource creates a source for a jar or jmod archive.
func NewArchiveSource(path string) *ArchiveSource {
	return &ArchiveSource{Path: path}
}

func (s *ArchiveSource) open() error {
	if s.entries != nil {
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return fmt.Errorf("archive: reading %s: %w", s.Path, err)
	}
	prefix := ""
	if bytes.HasPrefix(data, jmodMagic) {
		data = data[len(jmodMagic):]
		prefix = "classes/"
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("archive: opening zip %s: %w", s.Path, err)
	}
	s.entries = make(map[string]*zip.File)
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		s.entries[strings.TrimSuffix(strings.TrimPrefix(f.Name, prefix), ".class")] = f
	}
	log.Debugf("indexed %d classes in %s", len(s.entries), s.Path)
	return nil
}

func (s *ArchiveSource) Load(name string) (*Descriptor, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	f, ok := s.entries[name]
	if !ok {
		return nil, notFound(name, s.Path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s in %s: %w", f.Name, s.Path, err)
	}
	defer rc.Close()
	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing %s in %s: %w", name, s.Path, err)
	}
	return Normalize(cf)
}

// MemorySource serves descriptors held in memory.
type MemorySource struct {
	classes map[string]*Descriptor
}

// NewMemorySource returns an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{classes: make(map[string]*Descriptor)}
}

// Add registers a descriptor, replacing any previous one with the same name.
func (s *MemorySource) Add(d *Descriptor) {
	s.classes[d.Name] = d
}

// AddClassFile parses and registers raw class file bytes.
func (s *MemorySource) AddClassFile(data []byte) error {
	cf, err := classfile.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	d, err := Normalize(cf)
	if err != nil {
		return err
	}
	s.Add(d)
	return nil
}

func (s *MemorySource) Load(name string) (*Descriptor, error) {
	d, ok := s.classes[name]
	if !ok {
		return nil, notFound(name, "memory")
	}
	return d, nil
}

// Path searches an ordered list of sources and caches what it finds.
type Path struct {
	sources []Source
	cache   map[string]*Descriptor
}

// NewPath creates a search path over sources, first match wins.
func NewPath(sources ...Source) *Path {
	return &Path{sources: sources, cache: make(map[string]*Descriptor)}
}

// Open builds a search path from filesystem entries: directories, .jar, .zip and
// .jmod files.
func Open(entries []string) (*Path, error) {
	var sources []Source
	for _, e := range entries {
		info, err := os.Stat(e)
		if err != nil {
			return nil, fmt.Errorf("classpath entry %s: %w", e, err)
		}
		switch {
		case info.IsDir():
			sources = append(sources, &DirSource{Root: e})
		case strings.HasSuffix(e, ".jar"), strings.HasSuffix(e, ".zip"), strings.HasSuffix(e, ".jmod"):
			sources = append(sources, NewArchiveSource(e))
		default:
			return nil, fmt.Errorf("classpath entry %s: not a directory, jar or jmod", e)
		}
	}
	return NewPath(sources...), nil
}

func (p *Path) Load(name string) (*Descriptor, error) {
	if d, ok := p.cache[name]; ok {
		return d, nil
	}
	for _, s := range p.sources {
		d, err := s.Load(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if d.Name != name {
			return nil, fmt.Errorf("class file for %s declares %s", name, d.Name)
		}
		p.cache[name] = d
		return d, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

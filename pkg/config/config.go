// Package config handles jvmlink.toml link configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"

	"github.com/daimatz/jvmlink/pkg/classfile"
	"github.com/daimatz/jvmlink/pkg/linker"
	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// FileName is the conventional name of the configuration file.
const FileName = "jvmlink.toml"

// Config represents a jvmlink.toml file.
type Config struct {
	Link   Link   `toml:"link"`
	VM     *VM    `toml:"vm"`
	Output Output `toml:"output"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `toml:"-"`
}

// Link selects the program to link.
type Link struct {
	Classpath       []string `toml:"classpath"`
	Entry           string   `toml:"entry"`
	EntryMethod     string   `toml:"entry-method"`
	EntryDescriptor string   `toml:"entry-descriptor"`
	// Required holds references in "class member descriptor" form.
	Required     []string `toml:"required"`
	RequiredFile string   `toml:"required-file"`
}

// VM lists what the runtime itself needs. When the section is absent the
// built-in list is used.
type VM struct {
	Root      string   `toml:"root"`
	Bootstrap string   `toml:"bootstrap"`
	Classes   []string `toml:"classes"`
	Members   []string `toml:"members"`
	Arrays    []string `toml:"arrays"`
}

// Output names the generated files. Empty entries are not written.
type Output struct {
	Image  string `toml:"image"`
	Trace  string `toml:"trace"`
	Header string `toml:"header"`
}

// Log configures the log backend.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is given, rooted at dir.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.applyDefaults()
	return c
}

// Load parses the config file at path. Relative paths in the file are resolved
// against its directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.applyDefaults()
	c.resolvePaths()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Link.EntryMethod == "" {
		c.Link.EntryMethod = linker.DefaultEntryMethod.Name
	}
	if c.Link.EntryDescriptor == "" {
		c.Link.EntryDescriptor = linker.DefaultEntryMethod.Descriptor
	}
	if c.Output.Image == "" {
		c.Output.Image = "jvmlink.img"
	}
	if c.VM != nil && c.VM.Root == "" {
		c.VM.Root = linker.DefaultRoot
	}
}

func (c *Config) resolvePaths() {
	for i, p := range c.Link.Classpath {
		c.Link.Classpath[i] = c.Path(p)
	}
	c.Link.RequiredFile = c.Path(c.Link.RequiredFile)
	c.Output.Image = c.Path(c.Output.Image)
	c.Output.Trace = c.Path(c.Output.Trace)
	c.Output.Header = c.Path(c.Output.Header)
	c.Log.File = c.Path(c.Log.File)
}

// Path resolves p against the config directory. Empty and absolute paths are
// returned unchanged.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var err error
	if c.Link.Entry == "" {
		err = multierr.Append(err, fmt.Errorf("link.entry is required"))
	}
	if len(c.Link.Classpath) == 0 {
		err = multierr.Append(err, fmt.Errorf("link.classpath is empty"))
	}
	if _, _, perr := classfile.ParseMethodDescriptor(c.Link.EntryDescriptor); perr != nil {
		err = multierr.Append(err, fmt.Errorf("link.entry-descriptor: %w", perr))
	}
	for _, r := range c.Link.Required {
		if _, perr := linker.ParseReference(r); perr != nil {
			err = multierr.Append(err, fmt.Errorf("link.required: %w", perr))
		}
	}
	if c.VM != nil {
		for _, r := range c.VM.Members {
			if _, perr := linker.ParseReference(r); perr != nil {
				err = multierr.Append(err, fmt.Errorf("vm.members: %w", perr))
			}
		}
		for _, a := range c.VM.Arrays {
			if !strings.HasPrefix(a, "[") || !classfile.ValidFieldType(a) {
				err = multierr.Append(err, fmt.Errorf("vm.arrays: %q is not an array type", a))
			}
		}
	}
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 2 {
		err = multierr.Append(err, fmt.Errorf("log.verbosity %d out of range", c.Log.Verbosity))
	}
	return err
}

// Options converts the configuration into linker options, reading the required
// references file when one is set.
func (c *Config) Options() (linker.Options, error) {
	opts := linker.Options{
		Entry:       strings.ReplaceAll(c.Link.Entry, ".", "/"),
		EntryMethod: linkmodel.Signature{Name: c.Link.EntryMethod, Descriptor: c.Link.EntryDescriptor},
	}

	required, err := linker.ParseReferenceList(c.Link.Required)
	if err != nil {
		return opts, err
	}
	if c.Link.RequiredFile != "" {
		f, err := os.Open(c.Link.RequiredFile)
		if err != nil {
			return opts, fmt.Errorf("cannot read %s: %w", c.Link.RequiredFile, err)
		}
		defer f.Close()
		more, err := linker.ParseReferences(f)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", c.Link.RequiredFile, err)
		}
		required = append(required, more...)
	}
	opts.Required = required

	if c.VM == nil {
		opts.VM = linker.DefaultVMSeeds()
		return opts, nil
	}
	members, err := linker.ParseReferenceList(c.VM.Members)
	if err != nil {
		return opts, err
	}
	opts.VM = linker.VMSeeds{
		Root:      c.VM.Root,
		Bootstrap: c.VM.Bootstrap,
		Classes:   c.VM.Classes,
		Members:   members,
		Arrays:    c.VM.Arrays,
	}
	return opts, nil
}

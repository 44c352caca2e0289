package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ComedicChimera/olive"
	"github.com/pterm/pterm"

	"github.com/daimatz/jvmlink/pkg/classpath"
	"github.com/daimatz/jvmlink/pkg/config"
	"github.com/daimatz/jvmlink/pkg/emit"
	"github.com/daimatz/jvmlink/pkg/linker"
	"github.com/daimatz/jvmlink/pkg/logging"
	"github.com/daimatz/jvmlink/pkg/retrace"
)

func stringArg(result *olive.ArgParseResult, name string) string {
	if v, ok := result.Arguments[name]; ok {
		return v.(string)
	}
	return ""
}

// findJmodPath locates java.base.jmod of the installed JDK.
func findJmodPath() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// loadConfig reads the config named on the command line, or the one in the
// working directory, and applies the command line overrides.
func loadConfig(result *olive.ArgParseResult) (*config.Config, error) {
	path, ok := result.PrimaryArg()
	if !ok {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}

	var c *config.Config
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return nil, err
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		c = config.Default(wd)
	}

	if cp := stringArg(result, "classpath"); cp != "" {
		c.Link.Classpath = filepath.SplitList(cp)
	}
	if result.HasFlag("jdk") {
		jmod := findJmodPath()
		if jmod == "" {
			return nil, fmt.Errorf("could not find java.base.jmod; set JAVA_HOME or JAVA_BASE_JMOD")
		}
		c.Link.Classpath = append(c.Link.Classpath, jmod)
	}
	if e := stringArg(result, "entry"); e != "" {
		c.Link.Entry = e
	}
	if o := stringArg(result, "output"); o != "" {
		c.Output.Image = o
	}
	return c, nil
}

func execLinkCommand(result *olive.ArgParseResult, verbosity int) error {
	c, err := loadConfig(result)
	if err != nil {
		return err
	}
	if c.Log.Verbosity > verbosity {
		verbosity = c.Log.Verbosity
	}
	logging.Configure(verbosity, c.Log.File)

	if err := c.Validate(); err != nil {
		logging.PrintErrorMessage("Config Error", err)
		return fmt.Errorf("invalid configuration")
	}
	opts, err := c.Options()
	if err != nil {
		return err
	}
	path, err := classpath.Open(c.Link.Classpath)
	if err != nil {
		return err
	}

	r, err := linker.Run(path, opts)
	if err != nil {
		return err
	}
	img, err := emit.Emit(r, emit.Files{Image: c.Output.Image, Trace: c.Output.Trace, Header: c.Output.Header})
	if err != nil {
		return err
	}

	logging.PrintInfoMessage("Linked", fmt.Sprintf("%s: %d classes, %d methods, %d fields, %d bytes of code",
		c.Output.Image, len(img.Classes), r.Stats.Methods, r.Stats.Fields, len(img.Code)))
	return nil
}

func execRetraceCommand(result *olive.ArgParseResult) error {
	tracePath, _ := result.PrimaryArg()
	f, err := os.Open(tracePath)
	if err != nil {
		return err
	}
	defer f.Close()
	table, err := retrace.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", tracePath, err)
	}

	if pcs := stringArg(result, "pc"); pcs != "" {
		parsed, err := retrace.ParsePCs(pcs)
		if err != nil {
			return err
		}
		return table.Write(os.Stdout, parsed)
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		parsed, err := retrace.ParsePCs(sc.Text())
		if err != nil {
			return err
		}
		if err := table.Write(os.Stdout, parsed); err != nil {
			return err
		}
	}
	return sc.Err()
}

func execDumpCommand(result *olive.ArgParseResult) error {
	imagePath, _ := result.PrimaryArg()
	f, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer f.Close()
	img, err := emit.ReadImage(f)
	if err != nil {
		return err
	}

	logging.PrintInfoMessage("Image", img.BuildID)
	logging.PrintInfoMessage("Entry", fmt.Sprintf("%s at 0x%04x", img.Entry, img.EntryOffset))
	logging.PrintInfoMessage("Code", fmt.Sprintf("%d bytes, %d static slots, %d signatures", len(img.Code), img.StaticSize, len(img.Signatures)))

	data := [][]string{{"ID", "Class", "Kind", "Super", "Size", "Methods", "Fields", "Refs"}}
	for _, c := range img.Classes {
		data = append(data, []string{
			strconv.Itoa(c.ID), c.Name, c.Kind, strconv.Itoa(c.Super), strconv.Itoa(c.InstanceSize),
			strconv.Itoa(len(c.Methods)), strconv.Itoa(len(c.Fields)), strconv.Itoa(len(c.MemberRefs)),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if len(img.InitOrder) > 0 {
		logging.PrintInfoMessage("Init Order", fmt.Sprint(img.InitOrder))
	}
	return nil
}

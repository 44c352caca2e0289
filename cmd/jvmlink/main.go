package main

import (
	"errors"
	"os"

	"github.com/ComedicChimera/olive"

	"github.com/daimatz/jvmlink/pkg/logging"
)

// Version is the jvmlink release.
const Version = "0.3.0"

func main() {
	cli := olive.NewCLI("jvmlink", "jvmlink links JVM class files into a compact image for a small runtime", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false, []string{"silent", "error", "warn", "info", "debug"})
	logLvlArg.SetDefaultValue("warn")

	linkCmd := cli.AddSubcommand("link", "link a program", true)
	linkCmd.AddPrimaryArg("config", "the path to jvmlink.toml", false)
	linkCmd.AddStringArg("classpath", "cp", "class path entries, separated by the OS list separator", false)
	linkCmd.AddStringArg("entry", "e", "the entry class", false)
	linkCmd.AddStringArg("output", "o", "the image file to write", false)
	linkCmd.AddFlag("jdk", "j", "append the JDK's java.base.jmod to the class path")

	retraceCmd := cli.AddSubcommand("retrace", "map runtime pcs to source lines", true)
	retraceCmd.AddPrimaryArg("trace-file", "the trace file written by link", true)
	retraceCmd.AddStringArg("pc", "p", "comma separated pcs; read from stdin when absent", false)

	dumpCmd := cli.AddSubcommand("dump", "summarize an image", true)
	dumpCmd.AddPrimaryArg("image", "the image file", true)

	cli.AddSubcommand("version", "print the jvmlink version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	verbosity, err := logging.Level(result.Arguments["loglevel"].(string))
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "link":
		err = execLinkCommand(subResult, verbosity)
	case "retrace":
		logging.Configure(verbosity, "")
		err = execRetraceCommand(subResult)
	case "dump":
		logging.Configure(verbosity, "")
		err = execDumpCommand(subResult)
	case "version":
		logging.PrintInfoMessage("jvmlink Version", Version)
	default:
		err = errors.New("no command given")
	}
	if err != nil {
		logging.Report(err)
		os.Exit(1)
	}
}

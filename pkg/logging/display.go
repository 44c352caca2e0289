// Package logging prints user-facing diagnostics and configures the log
// backend shared by every package.
package logging

import (
	"errors"

	"github.com/pterm/pterm"

	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// PrintErrorMessage prints an error to the console
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintWarningMessage prints a warning message to the console
func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// Tag names the kind of a link error for display.
func Tag(err error) string {
	var (
		loader     *linkmodel.LoaderError
		unresolved *linkmodel.UnresolvedMemberError
		cyclic     *linkmodel.CyclicInitError
		seed       *linkmodel.MalformedSeedError
		internal   *linkmodel.InternalError
	)
	switch {
	case errors.As(err, &seed):
		return "Seed Error"
	case errors.As(err, &cyclic):
		return "Cyclic Initialization"
	case errors.As(err, &unresolved):
		return "Unresolved Member"
	case errors.As(err, &loader):
		return "Loader Error"
	case errors.As(err, &internal):
		return "Internal Error"
	}
	return "Error"
}

// Report prints err with its tag.
func Report(err error) {
	PrintErrorMessage(Tag(err), err)
}

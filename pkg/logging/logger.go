package logging

import (
	"fmt"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Verbosities accepted by Level, from quietest to loudest.
var levels = map[string]int{
	"silent": -4,
	"error":  -2,
	"warn":   -1,
	"info":   1,
	"debug":  2,
}

// Level converts a log level name to a backend verbosity.
func Level(name string) (int, error) {
	v, ok := levels[name]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return v, nil
}

// Configure sets up the log backend. An empty path logs to stderr.
func Configure(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

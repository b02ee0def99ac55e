package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Fatal pipeline errors exit with 2 so wrappers can distinguish them from
// external-tool exit codes passed through in logs.
const fatalExitCode = 2

// newLogger builds the logger instance handed to the runner and summarizer.
// Log level is per invocation; there is no process-wide level state.
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		fatalf("unknown log level %q", level)
	}
	log.SetLevel(lvl)
	return log
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(fatalExitCode)
}

package cmd

import (
	"fmt"
	"strings"
)

// ParseError reports a missing, empty, or structurally malformed stage report.
type ParseError struct {
	File   string
	Line   int // 0 when the whole file is unusable
	Format string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s (expected %s)", e.File, e.Line, e.Msg, e.Format)
	}
	return fmt.Sprintf("%s: %s (expected %s)", e.File, e.Msg, e.Format)
}

// MissingStageError reports an absent upstream output file. Summarize treats
// it as a soft failure: the affected summary fields carry the NA placeholder
// and the remaining files are still processed.
type MissingStageError struct {
	Stage string
	Path  string
}

func (e *MissingStageError) Error() string {
	return fmt.Sprintf("%s: missing stage output %s", e.Stage, e.Path)
}

// StageExecutionError reports a nonzero exit from an external tool. The
// attempted command line and the tool's stderr are surfaced verbatim.
type StageExecutionError struct {
	Stage    string
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *StageExecutionError) Error() string {
	msg := fmt.Sprintf("stage %s: '%s' exited %d", e.Stage, strings.Join(e.Command, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// stage is one external-tool invocation. Outputs are the files the stage must
// leave behind with non-zero size; they double as the skip-if-exists check.
// StdoutFile, when set, receives the tool's standard output (flagstat and
// friends report on stdout).
type stage struct {
	Name       string
	Program    string
	Args       []string
	Outputs    []string
	StdoutFile string
}

func (st stage) commandLine() []string {
	return append([]string{st.Program}, st.Args...)
}

// executor runs one external command. The runner never branches on
// tool-specific stderr text, only on the exit code and declared outputs, and
// tests substitute a recording fake.
type executor interface {
	run(program string, args []string, stdout io.Writer) (exitCode int, stderr string, err error)
}

type execExecutor struct{}

func (execExecutor) run(program string, args []string, stdout io.Writer) (int, string, error) {
	command := exec.Command(program, args...)
	var errBuf bytes.Buffer
	if stdout == nil {
		stdout = io.Discard
	}
	command.Stdout = stdout
	command.Stderr = &errBuf
	err := command.Run()
	if err == nil {
		return 0, errBuf.String(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), errBuf.String(), nil
	}
	return -1, errBuf.String(), err
}

// runner executes stages strictly in order. The first failure aborts the
// whole invocation.
type runner struct {
	log              *logrus.Logger
	exec             executor
	dontOverwrite    bool
	keepIntermediate bool
}

func newRunner(log *logrus.Logger, dontOverwrite, keepIntermediate bool) *runner {
	return &runner{
		log:              log,
		exec:             execExecutor{},
		dontOverwrite:    dontOverwrite,
		keepIntermediate: keepIntermediate,
	}
}

func (r *runner) runStage(st stage) error {
	if r.dontOverwrite && outputsSatisfied(st.Outputs) {
		r.log.Infof("%s: outputs present, skipping", st.Name)
		return nil
	}

	r.log.Infof("%s: %s", st.Name, strings.Join(st.commandLine(), " "))

	var stdout io.Writer
	var stdoutFile *os.File
	if st.StdoutFile != "" {
		f, err := os.Create(st.StdoutFile)
		if err != nil {
			return fmt.Errorf("stage %s: create %s: %w", st.Name, st.StdoutFile, err)
		}
		stdoutFile = f
		stdout = f
	}

	code, stderr, err := r.exec.run(st.Program, st.Args, stdout)
	if stdoutFile != nil {
		if cerr := stdoutFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("stage %s: run %s: %w", st.Name, st.Program, err)
	}
	if code != 0 {
		return &StageExecutionError{
			Stage:    st.Name,
			Command:  st.commandLine(),
			ExitCode: code,
			Stderr:   stderr,
		}
	}
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		r.log.Debugf("%s: %s", st.Name, trimmed)
	}
	return nil
}

// runAll runs the stages in order, then removes the enumerated intermediate
// files. Removal failures are logged, not fatal.
func (r *runner) runAll(stages []stage, intermediates []string) error {
	for _, st := range stages {
		if err := r.runStage(st); err != nil {
			return err
		}
	}
	if !r.keepIntermediate {
		for _, path := range intermediates {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.log.Warnf("remove intermediate %s: %v", path, err)
			}
		}
	}
	return nil
}

package cmd

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// outputsSatisfied reports whether every declared output already exists with
// non-zero size. This is the skip-if-exists criterion for --dont-overwrite.
func outputsSatisfied(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !fileExists(p) {
			return false
		}
	}
	return true
}

// sampleIDFromPath derives the default sample ID from an input basename,
// stripping a trailing .gz and one file extension.
func sampleIDFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".gz") {
		base = strings.TrimSuffix(base, ".gz")
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		return "sample"
	}
	return base
}

// envOr falls back to an environment variable when the flag was not given.
func envOr(flagValue, envName string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envName)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

type readCloser struct {
	reader io.Reader
	close  func() error
}

func (r readCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r readCloser) Close() error {
	return r.close()
}

// openInput opens a report file, transparently decompressing .gz inputs.
func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{
			reader: gz,
			close: func() error {
				_ = gz.Close()
				return f.Close()
			},
		}, nil
	}
	return f, nil
}

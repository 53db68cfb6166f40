package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// Options describes logger construction parameters. Outputs lists "stdout",
// "stderr" or file paths; it defaults to stdout.
type Options struct {
	Level       string
	Format      string
	Outputs     []string
	Development bool
}

// New constructs a slog logger writing every record to all outputs. Console
// output is colored when its only destination is a terminal.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	w, files, err := openOutputs(outputs)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newPrettyHandler(w, levelVar, addSource, len(files) == 1 && isTerminal(files[0]))), nil
	case "json":
		return slog.New(newJSONHandler(w, levelVar, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

func isTerminal(f *os.File) bool {
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// openOutputs opens each distinct destination once, creating parent
// directories for log files.
func openOutputs(outputs []string) (io.Writer, []*os.File, error) {
	seen := make(map[string]bool, len(outputs))
	var files []*os.File
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" || seen[out] {
			continue
		}
		seen[out] = true
		switch out {
		case "stdout":
			files = append(files, os.Stdout)
		case "stderr":
			files = append(files, os.Stderr)
		default:
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, nil, fmt.Errorf("create log dir for %s: %w", out, err)
				}
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, nil, fmt.Errorf("open log file %s: %w", out, err)
			}
			files = append(files, f)
		}
	}
	switch len(files) {
	case 0:
		return os.Stdout, []*os.File{os.Stdout}, nil
	case 1:
		return files[0], files, nil
	}
	writers := make([]io.Writer, len(files))
	for i, f := range files {
		writers[i] = f
	}
	return io.MultiWriter(writers...), files, nil
}

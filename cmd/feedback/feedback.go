// Package feedback prints command results either as text for a terminal or
// as JSON for scripts, and owns the process exit codes.
package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/homegw/homegw-rt/pkg/render"
)

// OutputFormat selects how results and errors are printed.
type OutputFormat int

const (
	// Text is meant for interactive terminals.
	Text OutputFormat = iota
	// JSON is indented JSON.
	JSON
	// MinifiedJSON is JSON on a single line.
	MinifiedJSON
)

var formats = map[string]OutputFormat{
	"json":     JSON,
	"jsonmini": MinifiedJSON,
	"text":     Text,
}

func (f OutputFormat) String() string {
	for name, format := range formats {
		if format == f {
			return name
		}
	}
	panic("unknown output format")
}

// ParseOutputFormat reports false for a name that is not a format.
func ParseOutputFormat(in string) (OutputFormat, bool) {
	format, found := formats[in]
	return format, found
}

var (
	stdOut   io.Writer = os.Stdout
	stdErr   io.Writer = os.Stderr
	exit               = os.Exit
	format             = Text
	selected bool
	warnings []string
)

// SetFormat may be called once, before anything is printed.
func SetFormat(f OutputFormat) {
	if selected {
		panic("output format already selected")
	}
	format = f
	selected = true
}

// Result is what a command prints on success.
type Result interface {
	fmt.Stringer
	Data() any
}

// Warnf reports a problem that does not fail the command. In JSON output the
// warnings are attached to the printed document.
func Warnf(msg string, args ...any) {
	msg = fmt.Sprintf(msg, args...)
	slog.Debug("warning", slog.String("msg", msg))
	if format == Text {
		fmt.Fprintln(stdErr, msg)
		return
	}
	warnings = append(warnings, msg)
}

func PrintResult(res Result) {
	if format == Text {
		if s := res.String(); s != "" {
			fmt.Fprintln(stdOut, s)
		}
		return
	}
	d, err := encode(res.Data())
	if err != nil {
		Fatal(fmt.Sprintf("Error during JSON encoding of the output: %v", err), ErrGeneric)
		return
	}
	fmt.Fprintln(stdOut, string(d))
}

// DaemonExitCode tells a request the daemon rejected apart from a daemon
// that could not be reached at all.
func DaemonExitCode(err error) ExitCode {
	var statusErr *render.StatusError
	if errors.As(err, &statusErr) {
		return ErrRequestRejected
	}
	return ErrDaemonUnreachable
}

type fatalError struct {
	Error      string `json:"error"`
	ExitCode   int    `json:"exit_code"`
	StatusCode int    `json:"status_code,omitempty"`
}

// FatalError prints err and exits with exitCode. When the daemon answered
// the request, its HTTP status is part of the JSON output.
func FatalError(err error, exitCode ExitCode) {
	res := fatalError{Error: err.Error(), ExitCode: int(exitCode)}
	var statusErr *render.StatusError
	if errors.As(err, &statusErr) {
		res.StatusCode = statusErr.StatusCode
	}
	fatal(res)
}

// Fatal prints errorMsg and exits with exitCode.
func Fatal(errorMsg string, exitCode ExitCode) {
	fatal(fatalError{Error: errorMsg, ExitCode: int(exitCode)})
}

func fatal(res fatalError) {
	if format == Text {
		fmt.Fprintln(stdErr, res.Error)
	} else {
		d, _ := encode(res)
		fmt.Fprintln(stdErr, string(d))
	}
	exit(res.ExitCode)
}

func encode(data any) ([]byte, error) {
	if len(warnings) > 0 {
		data = withWarnings(data)
	}
	if format == MinifiedJSON {
		return json.Marshal(data)
	}
	return json.MarshalIndent(data, "", "  ")
}

// withWarnings adds a "warnings" key when data encodes to a JSON object.
func withWarnings(data any) any {
	d, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var obj map[string]any
	if err := json.Unmarshal(d, &obj); err != nil {
		return data
	}
	obj["warnings"] = warnings
	return obj
}

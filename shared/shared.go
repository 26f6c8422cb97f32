package shared

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Prefix is prepended to all log lines and error messages.
const Prefix = "[hlatk]"

type Logger struct {
	*log.Logger
}

func (l *Logger) Write(b []byte) (int, error) {
	l.Logger.Printf(string(b))
	return len(b), nil
}

var Slogger *Logger

func init() {
	l := log.New(os.Stderr, Prefix+" ", log.Ldate|log.Ltime)
	Slogger = &Logger{Logger: l}
}

// HasProg returns "Y" if the program is found on $PATH and " " otherwise.
func HasProg(p string) string {
	if _, err := exec.LookPath(p); err == nil {
		return "Y"
	}
	return " "
}

// ExternalToolError wraps a non-zero exit (or an IO failure) from one of
// the wrapped binaries so callers can tell tool failures from our own.
type ExternalToolError struct {
	Tool string
	Err  error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool %q failed: %s", e.Tool, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Quote returns s single-quoted for safe interpolation into a bash
// command, so paths with spaces survive.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Run executes a shell command with output streamed through Slogger.
func Run(tool string, command string) error {
	p := exec.Command("bash", "-c", command)
	p.Stderr = Slogger
	p.Stdout = Slogger
	if err := p.Run(); err != nil {
		return &ExternalToolError{Tool: tool, Err: err}
	}
	return nil
}

// Package optitype generates the solver configuration artifact and the
// per-sample invocation of the typing pipeline.
package optitype

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SolverConfig is the run-level parameterization of the typing solver.
// It is a pure function of the run configuration: rendering the same
// values always yields byte-identical output.
type SolverConfig struct {
	Razers3 string
	Threads int
	Solver  string
}

// Render produces the INI artifact consumed by every solver invocation.
func (c SolverConfig) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[mapping]\n")
	fmt.Fprintf(&buf, "razers3=%s\n", c.Razers3)
	fmt.Fprintf(&buf, "threads=%d\n\n", c.Threads)
	fmt.Fprintf(&buf, "[ilp]\n")
	fmt.Fprintf(&buf, "solver=%s\n", c.Solver)
	fmt.Fprintf(&buf, "threads=1\n\n")
	fmt.Fprintf(&buf, "[behavior]\n")
	fmt.Fprintf(&buf, "deletebam=true\n")
	fmt.Fprintf(&buf, "unpaired_weight=0\n")
	fmt.Fprintf(&buf, "use_discordant=false\n")
	return buf.Bytes()
}

// Write persists the artifact atomically (write to temp, then rename)
// so concurrent readers never observe a partial file. The temp file
// lives next to the destination so the rename stays on one filesystem.
func (c SolverConfig) Write(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating solver config dir")
	}
	f, err := os.CreateTemp(dir, "config.ini.")
	if err != nil {
		return errors.Wrap(err, "creating solver config temp file")
	}
	if _, err := f.Write(c.Render()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return errors.Wrap(err, "writing solver config")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return errors.Wrap(err, "closing solver config")
	}
	return os.Rename(f.Name(), path)
}

// Typer phrases the per-sample typing command.
type Typer struct {
	Exe          string
	ConfigPath   string
	SeqType      string
	Enumerations int
	Beta         float64
}

// Cmd invokes the typing pipeline on a sample's mapped BAM(s), writing
// results under outdir. The in/out arguments may be literal paths or
// workflow-engine placeholders; done is touched on success so the
// engine can track the result directory.
func (t Typer) Cmd(bams []string, outdir, done string) string {
	return fmt.Sprintf("set -euo pipefail; mkdir -p %s"+
		" && %s -i %s --%s -e %d -b %g -c %s --verbose --outdir %s"+
		" && touch %s",
		outdir, t.Exe, strings.Join(bams, " "), t.SeqType,
		t.Enumerations, t.Beta, t.ConfigPath, outdir, done)
}

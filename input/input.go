// Package input resolves the run configuration into a uniform set of
// sample records, each naming one (single-end, BAM) or two (paired-end)
// read files.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/brentp/xopen"
	"github.com/hlatk/hlatk/config"
	"github.com/pkg/errors"
)

// Mode tags the two mutually exclusive sub-pipelines. It is decided
// once here; downstream stages switch on the tag rather than on flags.
type Mode int

const (
	ModeFastq Mode = iota
	ModeBAM
)

func (m Mode) String() string {
	if m == ModeBAM {
		return "bam"
	}
	return "fastq"
}

// Sample is one input unit: an identifier plus its ordered read files
// (forward before reverse in paired mode).
type Sample struct {
	ID    string   `json:"id"`
	Files []string `json:"files"`
}

// Set is the resolved input: every sample of the run under one mode
// and one pairing shape.
type Set struct {
	Mode    Mode     `json:"mode"`
	Paired  bool     `json:"paired"`
	Samples []Sample `json:"samples"`
}

// EmptyInputError is raised when an input specification matches no
// files. Like ConfigurationError it aborts before any task runs.
type EmptyInputError struct {
	Pattern string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no input files matched %q", e.Pattern)
}

var mateRe = regexp.MustCompile(`_(R?)([12])$`)

// Resolve classifies the configured input and produces the sample set.
func Resolve(cfg *config.Config) (*Set, error) {
	if cfg.Samples != "" {
		return fromSheet(cfg)
	}
	if cfg.Input == "" {
		return nil, config.Configf("no input specified: provide --input or --samples")
	}
	var paths []string
	for _, pat := range expandBraces(cfg.Input) {
		m, err := filepath.Glob(pat)
		if err != nil {
			return nil, config.Configf("bad input pattern %q: %s", cfg.Input, err)
		}
		paths = append(paths, m...)
	}
	paths = dedupe(paths)
	if len(paths) == 0 {
		return nil, &EmptyInputError{Pattern: cfg.Input}
	}
	if cfg.BAM {
		return fromBams(paths, !cfg.SingleEnd)
	}
	if cfg.SingleEnd {
		return fromSingles(paths)
	}
	return fromPairs(cfg.Input, paths)
}

func fromBams(paths []string, paired bool) (*Set, error) {
	s := &Set{Mode: ModeBAM, Paired: paired}
	for _, p := range paths {
		if err := checkBam(p); err != nil {
			return nil, err
		}
		s.Samples = append(s.Samples, Sample{ID: stem(p), Files: []string{p}})
	}
	return s, checkUnique(s.Samples)
}

func fromSingles(paths []string) (*Set, error) {
	s := &Set{Mode: ModeFastq}
	for _, p := range paths {
		s.Samples = append(s.Samples, Sample{ID: stem(p), Files: []string{p}})
	}
	return s, checkUnique(s.Samples)
}

// fromPairs groups files by the stem left after stripping a trailing
// _1/_2 (or _R1/_R2) mate marker. Order within a pair is significant:
// mate 1 is the forward read.
func fromPairs(pattern string, paths []string) (*Set, error) {
	groups := make(map[string][]string)
	var order []string
	for _, p := range paths {
		st := stem(p)
		m := mateRe.FindStringSubmatch(st)
		if m == nil {
			return nil, config.Configf("cannot find mate marker (_1/_2/_R1/_R2) in %q; use --single-end for unpaired reads", p)
		}
		key := st[:len(st)-len(m[0])]
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}
	s := &Set{Mode: ModeFastq, Paired: true}
	for _, key := range order {
		files := groups[key]
		if len(files) != 2 {
			return nil, config.Configf("sample %q matched %d files under %q; paired-end input needs exactly 2", key, len(files), pattern)
		}
		sort.Strings(files)
		s.Samples = append(s.Samples, Sample{ID: key, Files: files})
	}
	return s, checkUnique(s.Samples)
}

// fromSheet reads an explicit (identifier, path[, path2]) TSV.
func fromSheet(cfg *config.Config) (*Set, error) {
	rdr, err := xopen.Ropen(cfg.Samples)
	if err != nil {
		return nil, config.Configf("cannot open sample sheet %q: %s", cfg.Samples, err)
	}
	defer rdr.Close()
	s := &Set{Mode: ModeFastq, Paired: !cfg.SingleEnd}
	if cfg.BAM {
		// a BAM row names one file; pairing is split out later on the
		// mate flags.
		s.Mode = ModeBAM
	}
	for {
		line, rerr := rdr.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			toks := strings.Split(line, "\t")
			want := 2
			if s.Paired && s.Mode == ModeFastq {
				want = 3
			}
			if len(toks) != want {
				return nil, config.Configf("sample sheet line %q: expected %d tab-separated columns", line, want)
			}
			smp := Sample{ID: toks[0], Files: toks[1:]}
			for _, f := range smp.Files {
				if !xopen.Exists(f) {
					return nil, config.Configf("sample %q: file %q does not exist", smp.ID, f)
				}
			}
			if s.Mode == ModeBAM {
				if err := checkBam(smp.Files[0]); err != nil {
					return nil, err
				}
			}
			s.Samples = append(s.Samples, smp)
		}
		if rerr != nil {
			break
		}
	}
	if len(s.Samples) == 0 {
		return nil, &EmptyInputError{Pattern: cfg.Samples}
	}
	return s, checkUnique(s.Samples)
}

// duplicate identifiers would silently collide in output paths, so
// they are rejected up front.
func checkUnique(samples []Sample) error {
	seen := make(map[string]string, len(samples))
	for _, s := range samples {
		if prev, ok := seen[s.ID]; ok {
			return config.Configf("duplicate sample identifier %q (%s and %s)", s.ID, prev, s.Files[0])
		}
		seen[s.ID] = s.Files[0]
	}
	return nil
}

// expandBraces expands {a,b} alternation, as in the common _R{1,2}
// read naming, into plain glob patterns.
func expandBraces(pattern string) []string {
	open := strings.Index(pattern, "{")
	if open == -1 {
		return []string{pattern}
	}
	end := strings.Index(pattern[open:], "}")
	if end == -1 {
		return []string{pattern}
	}
	end += open
	var out []string
	for _, alt := range strings.Split(pattern[open+1:end], ",") {
		out = append(out, expandBraces(pattern[:open]+alt+pattern[end+1:])...)
	}
	return out
}

// dedupe sorts and removes paths matched by more than one expanded
// pattern.
func dedupe(paths []string) []string {
	sort.Strings(paths)
	out := paths[:0]
	for i, p := range paths {
		if i == 0 || p != paths[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// checkBam opens the BAM header to fail early on truncated or
// mislabeled files.
func checkBam(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return config.Configf("cannot open %q: %s", path, err)
	}
	defer f.Close()
	br, err := bam.NewReader(f, 1)
	if err != nil {
		return errors.Wrapf(err, "%q is not a valid BAM", path)
	}
	return br.Close()
}

// stem strips the directory and any recognized read-file extensions.
func stem(path string) string {
	b := filepath.Base(path)
	for _, ext := range []string{".gz", ".fastq", ".fq", ".bam"} {
		b = strings.TrimSuffix(b, ext)
	}
	return b
}

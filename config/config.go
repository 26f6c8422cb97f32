package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ConfigurationError indicates a bad or missing required parameter.
// It is always fatal and raised before any task is scheduled.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...interface{}) error {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// Tools holds the executables wrapped by the pipeline. Paths can be
// overridden from an hlatk.yaml config file; defaults assume $PATH.
type Tools struct {
	Yara     string
	Samtools string
	OptiType string
	MultiQC  string
	Sendmail string
	Mail     string
}

// Config is the full run-level parameter surface. It is assembled once
// at startup and never mutated afterwards.
type Config struct {
	Input     string
	Samples   string
	BAM       bool
	SingleEnd bool

	SeqType      string
	Solver       string
	Enumerations int
	Beta         float64

	BaseIndex string
	IndexName string

	OutDir  string
	RunName string

	MaxCPUs   int
	MaxMemory uint64
	MaxTime   time.Duration

	Email          string
	EmailOnFail    string
	PlaintextEmail bool
	MaxEmailSize   uint64

	MultiQCConfig string

	Profile   string
	AWSQueue  string
	AWSRegion string
	TraceDir  string

	Tools Tools
}

// LoadTools reads tool executable locations from hlatk.yaml in the
// working directory or ~/.config, falling back to bare program names.
func LoadTools() Tools {
	viper.SetConfigName("hlatk")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/")

	viper.SetDefault("yara_exec", "yara_mapper")
	viper.SetDefault("samtools_exec", "samtools")
	viper.SetDefault("optitype_exec", "OptiTypePipeline.py")
	viper.SetDefault("multiqc_exec", "multiqc")
	viper.SetDefault("sendmail_exec", "sendmail")
	viper.SetDefault("mail_exec", "mail")

	// missing config file is fine; the defaults above apply.
	_ = viper.ReadInConfig()

	return Tools{
		Yara:     viper.GetString("yara_exec"),
		Samtools: viper.GetString("samtools_exec"),
		OptiType: viper.GetString("optitype_exec"),
		MultiQC:  viper.GetString("multiqc_exec"),
		Sendmail: viper.GetString("sendmail_exec"),
		Mail:     viper.GetString("mail_exec"),
	}
}

// ParseSize converts a human size like "25 MB" to bytes.
func ParseSize(s string) (uint64, error) {
	v, err := bytefmt.ToBytes(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0, errors.Wrapf(err, "bad size %q", s)
	}
	return v, nil
}

// Index returns the reference index path used for every mapper call.
// An explicit name wins; otherwise it is derived from the sequence type.
func (c *Config) Index() string {
	name := c.IndexName
	if name == "" {
		name = "hla_reference_" + c.SeqType
	}
	return filepath.Join(c.BaseIndex, name)
}

// ClampCPUs bounds a per-task CPU request by the run ceiling.
func (c *Config) ClampCPUs(req int) int {
	if c.MaxCPUs > 0 && req > c.MaxCPUs {
		return c.MaxCPUs
	}
	if req < 1 {
		return 1
	}
	return req
}

// Validate checks the pre-flight invariants. All failures here abort
// the run before any task is scheduled.
func (c *Config) Validate() error {
	if c.Input == "" && c.Samples == "" {
		return Configf("no input specified: provide --input or --samples")
	}
	if c.SeqType != "dna" && c.SeqType != "rna" {
		return Configf("--seqtype must be 'dna' or 'rna', got %q", c.SeqType)
	}
	if c.Solver != "glpk" && c.Solver != "cbc" {
		return Configf("--solver must be 'glpk' or 'cbc', got %q", c.Solver)
	}
	if c.Enumerations < 1 {
		return Configf("--enumerations must be >= 1, got %d", c.Enumerations)
	}
	if c.Beta <= 0 || c.Beta >= 1 {
		return Configf("--beta must be in (0, 1), got %g", c.Beta)
	}
	if c.OutDir == "" {
		return Configf("--outdir is required")
	}
	if c.Profile == "awsbatch" {
		if err := c.validateAWSBatch(); err != nil {
			return err
		}
	}
	return nil
}

package config

import (
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
)

// Field is one key-value row of the workflow summary.
type Field struct {
	Key   string
	Value string
}

// Summary is the run metadata assembled once at startup. It is passed
// explicitly to the reporting and notification stages and never
// mutated; completion data travels separately in Completion.
type Summary struct {
	Fields []Field
}

// Completion carries the late-bound fields only known at workflow end.
type Completion struct {
	Start    time.Time
	End      time.Time
	Success  bool
	ErrorMsg string
}

func (c Completion) Duration() time.Duration { return c.End.Sub(c.Start) }

// NewSummary builds the workflow summary from a validated Config.
func NewSummary(c *Config) Summary {
	input := c.Input
	if input == "" {
		input = c.Samples
	}
	reads := "paired-end"
	if c.SingleEnd {
		reads = "single-end"
	}
	if c.BAM {
		reads = "bam"
	}
	host, _ := os.Hostname()
	uname := ""
	if u, err := user.Current(); err == nil {
		uname = u.Username
	}
	fields := []Field{
		{"Run Name", c.RunName},
		{"Input", input},
		{"Data Type", reads},
		{"Seq Type", c.SeqType},
		{"IP Solver", c.Solver},
		{"Enumerations", itoa(c.Enumerations)},
		{"Beta", ftoa(c.Beta)},
		{"Index Location", c.Index()},
		{"Max CPUs", itoa(c.MaxCPUs)},
		{"Max Memory", bytefmt.ByteSize(c.MaxMemory)},
		{"Max Time", c.MaxTime.String()},
		{"Output Dir", c.OutDir},
		{"Launch Dir", cwd()},
		{"Working Dir", cwd()},
		{"Script Args", strings.Join(os.Args[1:], " ")},
		{"User", uname},
		{"Hostname", host},
	}
	if c.Profile != "" {
		fields = append(fields, Field{"Profile", c.Profile})
	}
	if c.Profile == "awsbatch" {
		fields = append(fields,
			Field{"AWS Region", c.AWSRegion},
			Field{"AWS Queue", c.AWSQueue})
	}
	if c.Email != "" {
		fields = append(fields, Field{"E-mail Address", c.Email})
	}
	return Summary{Fields: fields}
}

// Get returns the value for a key, or "" when absent.
func (s Summary) Get(key string) string {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

func cwd() string {
	d, _ := os.Getwd()
	return d
}

func itoa(i int) string { return strconv.Itoa(i) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

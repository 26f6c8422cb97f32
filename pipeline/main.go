package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	arg "github.com/alexflint/go-arg"
	sp "github.com/scipipe/scipipe"

	"github.com/hlatk/hlatk/config"
	"github.com/hlatk/hlatk/input"
	"github.com/hlatk/hlatk/notify"
	"github.com/hlatk/hlatk/report"
	"github.com/hlatk/hlatk/shared"
)

type cliargs struct {
	Input     string `arg:"-i,help:glob of FASTQ(.gz) or BAM input files."`
	Samples   string `arg:"help:TSV of explicit (identifier<tab>file[<tab>file2]) rows."`
	BAM       bool   `arg:"help:input files are BAM."`
	SingleEnd bool   `arg:"--single-end,help:reads are unpaired."`

	SeqType      string  `arg:"--seqtype,help:sequence type: dna or rna."`
	Solver       string  `arg:"help:IP solver for the typing step: glpk or cbc."`
	Enumerations int     `arg:"-e,help:number of alternative typing solutions to report."`
	Beta         float64 `arg:"-b,help:solver sensitivity parameter."`

	BaseIndex string `arg:"--base-index,help:directory holding the HLA reference indices."`
	IndexName string `arg:"--index-name,help:explicit index name (default hla_reference_<seqtype>)."`

	OutDir  string `arg:"-o,help:output directory."`
	RunName string `arg:"-n,help:run name used in reports and notifications."`

	CPUs   int    `arg:"-p,help:CPU ceiling passed to the wrapped tools."`
	Memory string `arg:"help:memory ceiling hint (e.g. '16 GB')."`
	Time   string `arg:"help:time budget hint (e.g. '24h')."`

	Email          string `arg:"help:address for the completion notification."`
	EmailOnFail    string `arg:"--email-on-fail,help:address notified only on failure."`
	PlaintextEmail bool   `arg:"--plaintext-email,help:skip the HTML part of the notification."`
	MaxEmailSize   string `arg:"--max-email-size,help:largest report attachment to send."`

	MultiQCConfig string `arg:"--multiqc-config,help:custom report aggregator config."`

	Profile   string `arg:"help:execution profile (e.g. awsbatch)."`
	AWSQueue  string `arg:"--awsqueue,help:AWS Batch queue (awsbatch profile)."`
	AWSRegion string `arg:"--awsregion,help:AWS region (awsbatch profile)."`
	TraceDir  string `arg:"--tracedir,help:directory for engine trace output."`
}

func (c cliargs) Description() string {
	return "map reads against the HLA reference and type alleles with OptiType"
}

func (c cliargs) toConfig() (*config.Config, error) {
	mem, err := config.ParseSize(c.Memory)
	if err != nil {
		return nil, config.Configf("bad --memory: %s", err)
	}
	esize, err := config.ParseSize(c.MaxEmailSize)
	if err != nil {
		return nil, config.Configf("bad --max-email-size: %s", err)
	}
	dur, err := time.ParseDuration(c.Time)
	if err != nil {
		return nil, config.Configf("bad --time: %s", err)
	}
	name := c.RunName
	if name == "" {
		name = "hlatk-" + time.Now().Format("20060102-150405")
	}
	cfg := &config.Config{
		Input:     c.Input,
		Samples:   c.Samples,
		BAM:       c.BAM,
		SingleEnd: c.SingleEnd,

		SeqType:      c.SeqType,
		Solver:       c.Solver,
		Enumerations: c.Enumerations,
		Beta:         c.Beta,

		BaseIndex: c.BaseIndex,
		IndexName: c.IndexName,

		OutDir:  c.OutDir,
		RunName: name,

		MaxCPUs:   c.CPUs,
		MaxMemory: mem,
		MaxTime:   dur,

		Email:          c.Email,
		EmailOnFail:    c.EmailOnFail,
		PlaintextEmail: c.PlaintextEmail,
		MaxEmailSize:   esize,

		MultiQCConfig: c.MultiQCConfig,

		Profile:   c.Profile,
		AWSQueue:  c.AWSQueue,
		AWSRegion: c.AWSRegion,
		TraceDir:  c.TraceDir,

		Tools: config.LoadTools(),
	}
	if cfg.TraceDir == "" {
		cfg.TraceDir = filepath.Join(cfg.OutDir, "pipeline_info")
	}
	return cfg, nil
}

// Main is the `hlatk run` entry point: resolve, schedule, report,
// notify.
func Main() {
	cli := cliargs{
		Solver:       "glpk",
		Enumerations: 1,
		Beta:         0.009,
		OutDir:       "./results",
		CPUs:         4,
		Memory:       "16 GB",
		Time:         "24h",
		MaxEmailSize: "25 MB",
	}
	arg.MustParse(&cli)
	cfg, err := cli.toConfig()
	if err != nil {
		shared.Slogger.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		shared.Slogger.Fatal(err)
	}
	set, err := input.Resolve(cfg)
	if err != nil {
		shared.Slogger.Fatal(err)
	}
	shared.Slogger.Printf("resolved %d sample(s) in %s mode", len(set.Samples), set.Mode)

	start := time.Now()
	summary := config.NewSummary(cfg)
	infoDir := filepath.Join(cfg.OutDir, "pipeline_info")

	// single producer of the shared solver configuration artifact.
	sc, confPath := ConfigArtifact(cfg)
	if err := sc.Write(confPath); err != nil {
		shared.Slogger.Fatal(err)
	}

	plan := Plan{Config: cfg, Set: set}
	planPath := filepath.Join(infoDir, "plan.json")
	if err := WritePlan(plan, planPath); err != nil {
		shared.Slogger.Fatal(err)
	}

	// the task graph runs in a child process so a mid-run task failure
	// still comes back here as an exit status and the notifier fires.
	runErr := shared.Run("hlatk", typeCmd(selfExe(), planPath))
	comp := config.Completion{Start: start, End: time.Now(), Success: runErr == nil}
	if runErr != nil {
		comp.ErrorMsg = runErr.Error()
		shared.Slogger.Printf("workflow failed: %s", runErr)
	}

	// reporting branch: best-effort version probes, then aggregation.
	results := report.ProbeAll(cfg.Tools)
	if err := report.WriteFragments(results, summary, infoDir); err != nil {
		shared.Slogger.Printf("writing report fragments: %s", err)
	}
	mqcDir := filepath.Join(cfg.OutDir, "MultiQC")
	if err := shared.Run("multiqc", report.MultiQCCmd(cfg.Tools.MultiQC, cfg.MultiQCConfig, cfg.OutDir, mqcDir)); err != nil {
		shared.Slogger.Printf("report aggregation failed: %s", err)
	}

	notifyCompletion(cfg, summary, comp, filepath.Join(mqcDir, "multiqc_report.html"), infoDir)

	if runErr != nil {
		os.Exit(1)
	}
	shared.Slogger.Printf("run %s finished in %s", cfg.RunName, comp.Duration().Round(time.Second))
}

func notifyCompletion(cfg *config.Config, summary config.Summary, comp config.Completion, reportPath, infoDir string) {
	s := notify.Summary{
		RunName:     cfg.RunName,
		Success:     comp.Success,
		Completion:  comp,
		Fields:      summary.Fields,
		CommandLine: strings.Join(os.Args, " "),
		ReportPath:  reportPath,
	}
	if err := notify.Persist(s, infoDir); err != nil {
		shared.Slogger.Printf("persisting completion report: %s", err)
	}
	to := cfg.Email
	if !comp.Success && cfg.EmailOnFail != "" {
		to = cfg.EmailOnFail
	}
	if to == "" {
		return
	}
	m := notify.Mailer{Tools: cfg.Tools, To: to, MaxSize: cfg.MaxEmailSize, Plaintext: cfg.PlaintextEmail}
	if err := m.Deliver(s); err != nil {
		// non-fatal: the reports are already on disk.
		shared.Slogger.Printf("%s", err)
	}
}

type typeargs struct {
	Plan string `arg:"required,help:path to the resolved run plan JSON."`
}

func (typeargs) Description() string {
	return "execute the typing task graph from a resolved run plan"
}

// TypeMain is the `hlatk type` entry point: it executes the task graph
// for an already-resolved plan under the workflow engine.
func TypeMain() {
	cli := typeargs{}
	arg.MustParse(&cli)
	plan, err := ReadPlan(cli.Plan)
	if err != nil {
		shared.Slogger.Fatal(err)
	}
	sp.InitLogInfo()
	wf := sp.NewWorkflow("hlatk", plan.Config.ClampCPUs(plan.Config.MaxCPUs))
	Build(wf, Stages(plan.Config, plan.Set, selfExe()))
	wf.Run()
}

// typeCmd phrases the child invocation that executes the task graph.
// Both operands are quoted: the executable and the output directory may
// contain spaces.
func typeCmd(self, plan string) string {
	return shared.Quote(self) + " type --plan " + shared.Quote(plan)
}

func selfExe() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return "hlatk"
}

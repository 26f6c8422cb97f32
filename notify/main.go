package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	arg "github.com/alexflint/go-arg"

	"github.com/hlatk/hlatk/config"
	"github.com/hlatk/hlatk/shared"
)

type cliargs struct {
	RunName      string `arg:"-n,required,help:run name used in the subject line."`
	OutDir       string `arg:"-o,required,help:run output directory."`
	Email        string `arg:"help:address for the notification."`
	EmailOnFail  string `arg:"--email-on-fail,help:address notified only on failure."`
	Plaintext    bool   `arg:"--plaintext-email,help:skip the HTML part."`
	MaxEmailSize string `arg:"--max-email-size,help:largest report attachment to send."`
	Failed       bool   `arg:"help:render the failure variant of the summary."`
}

func (cliargs) Description() string {
	return "render and deliver the workflow completion summary"
}

// Main is the `hlatk notify` entry point. It re-renders the completion
// summary for a finished run directory, e.g. after a delivery failure.
func Main() {
	cli := cliargs{MaxEmailSize: "25 MB"}
	arg.MustParse(&cli)
	maxSize, err := config.ParseSize(cli.MaxEmailSize)
	if err != nil {
		shared.Slogger.Fatal(err)
	}
	infoDir := filepath.Join(cli.OutDir, "pipeline_info")
	now := time.Now()
	s := Summary{
		RunName:     cli.RunName,
		Success:     !cli.Failed,
		Completion:  config.Completion{Start: now, End: now, Success: !cli.Failed},
		Fields:      planFields(filepath.Join(infoDir, "plan.json")),
		CommandLine: strings.Join(os.Args, " "),
		ReportPath:  filepath.Join(cli.OutDir, "MultiQC", "multiqc_report.html"),
	}
	if err := Persist(s, infoDir); err != nil {
		shared.Slogger.Fatal(err)
	}
	to := cli.Email
	if cli.Failed && cli.EmailOnFail != "" {
		to = cli.EmailOnFail
	}
	if to == "" {
		return
	}
	m := Mailer{Tools: config.LoadTools(), To: to, MaxSize: maxSize, Plaintext: cli.Plaintext}
	if err := m.Deliver(s); err != nil {
		shared.Slogger.Printf("%s", err)
	}
}

// planFields recovers the workflow summary from a persisted run plan;
// absent or unreadable plans just mean an empty configuration table.
func planFields(planPath string) []config.Field {
	b, err := os.ReadFile(planPath)
	if err != nil {
		return nil
	}
	var plan struct {
		Config *config.Config `json:"config"`
	}
	if err := json.Unmarshal(b, &plan); err != nil || plan.Config == nil {
		return nil
	}
	return config.NewSummary(plan.Config).Fields
}

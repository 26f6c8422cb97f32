package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hlatk/hlatk/config"
)

var tools = config.Tools{Yara: "yara_mapper", Samtools: "samtools",
	OptiType: "OptiTypePipeline.py", MultiQC: "multiqc"}

func TestMatch(t *testing.T) {
	cases := []struct {
		tool   string
		banner string
		want   string
	}{
		{"Samtools", "samtools 1.9\nUsing htslib 1.9", "1.9"},
		{"Yara", "yara_mapper version: 0.9.11 [2566]", "0.9.11"},
		{"OptiType", "OptiType\nVersion: 1.3.1\n", "1.3.1"},
		{"MultiQC", "multiqc, version 1.7", "1.7"},
	}
	for _, tc := range cases {
		r := Match(tc.tool, []byte(tc.banner), tools)
		if !r.Known {
			t.Errorf("%s: version not found in %q", tc.tool, tc.banner)
			continue
		}
		if r.Version != tc.want {
			t.Errorf("%s: version = %q, want %q", tc.tool, r.Version, tc.want)
		}
	}
}

func TestMatchUnknown(t *testing.T) {
	r := Match("Samtools", []byte("command not found"), tools)
	if r.Known {
		t.Error("garbage output must stay unknown")
	}
	if r.String() != "N/A" {
		t.Errorf("unknown renders as %q", r.String())
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "software_versions.csv")
	results := []Result{
		{Tool: "hlatk", Version: "0.3.1", Known: true},
		{Tool: "Samtools"},
	}
	if err := WriteCSV(results, path); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "hlatk\tv0.3.1\nSamtools\tN/A\n"
	if string(b) != want {
		t.Errorf("csv = %q, want %q", b, want)
	}
}

func TestVersionsFragment(t *testing.T) {
	results := []Result{
		{Tool: "hlatk", Version: "0.3.1", Known: true},
		{Tool: "Yara"},
	}
	frag := string(VersionsFragment(results))
	for _, want := range []string{
		"id: 'software_versions'",
		"<dt>hlatk</dt><dd><samp>v0.3.1</samp></dd>",
		`<span style="color:#999999;">N/A</span>`,
	} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment missing %q:\n%s", want, frag)
		}
	}
}

func TestSummaryFragment(t *testing.T) {
	s := config.Summary{Fields: []config.Field{{Key: "Run Name", Value: "r1"}}}
	frag := string(SummaryFragment(s))
	if !strings.Contains(frag, "id: 'workflow-summary'") {
		t.Error("fragment missing section id")
	}
	if !strings.Contains(frag, "<dt>Run Name</dt><dd><samp>r1</samp></dd>") {
		t.Errorf("fragment missing field row:\n%s", frag)
	}
}

func TestMultiQCCmd(t *testing.T) {
	cmd := MultiQCCmd("multiqc", "", "/out", "/out/MultiQC")
	if cmd != "multiqc -f -o /out/MultiQC /out" {
		t.Errorf("cmd = %q", cmd)
	}
	cmd = MultiQCCmd("multiqc", "custom.yaml", "/out", "/out/MultiQC")
	if !strings.Contains(cmd, "-c custom.yaml") {
		t.Errorf("custom config not passed: %q", cmd)
	}
}

func TestWriteFragments(t *testing.T) {
	dir := t.TempDir()
	results := []Result{{Tool: "hlatk", Version: "0.3.1", Known: true}}
	s := config.Summary{Fields: []config.Field{{Key: "Run Name", Value: "r"}}}
	if err := WriteFragments(results, s, dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"software_versions.csv",
		"software_versions_mqc.yaml",
		"workflow_summary_mqc.yaml",
		"results_description.html",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

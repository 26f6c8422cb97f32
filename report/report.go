// Package report collects tool version metadata and phrases the
// aggregation (MultiQC) stage. Version probes are best effort: a probe
// that fails is recorded as unknown, never raised.
package report

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/hlatk/hlatk"
	"github.com/hlatk/hlatk/config"
	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
)

// Result is the outcome of one version probe.
type Result struct {
	Tool    string
	Version string
	Known   bool
}

func (r Result) String() string {
	if !r.Known {
		return "N/A"
	}
	return "v" + r.Version
}

type probe struct {
	tool    string
	args    []string
	pattern *regexp.Regexp
}

func probes(t config.Tools) []probe {
	return []probe{
		{"Samtools", []string{t.Samtools, "--version"}, regexp.MustCompile(`samtools (\S+)`)},
		{"Yara", []string{t.Yara, "--version"}, regexp.MustCompile(`yara_mapper version: (\S+)`)},
		{"OptiType", []string{t.OptiType, "--version"}, regexp.MustCompile(`Version: (\S+)`)},
		{"MultiQC", []string{t.MultiQC, "--version"}, regexp.MustCompile(`multiqc, version (\S+)`)},
	}
}

// ProbeAll runs every tool's version probe. The pipeline's own version
// is always the first row.
func ProbeAll(t config.Tools) []Result {
	results := []Result{{Tool: "hlatk", Version: hlatk.Version, Known: true}}
	for _, p := range probes(t) {
		results = append(results, runProbe(p))
	}
	return results
}

func runProbe(p probe) Result {
	out, err := exec.Command(p.args[0], p.args[1:]...).CombinedOutput()
	if err != nil && len(out) == 0 {
		return Result{Tool: p.tool}
	}
	m := p.pattern.FindSubmatch(out)
	if m == nil {
		return Result{Tool: p.tool}
	}
	return Result{Tool: p.tool, Version: string(m[1]), Known: true}
}

// Match extracts a version from already-captured probe output. Exposed
// for the versions subcommand and tests.
func Match(tool string, output []byte, t config.Tools) Result {
	for _, p := range probes(t) {
		if p.tool != tool {
			continue
		}
		if m := p.pattern.FindSubmatch(output); m != nil {
			return Result{Tool: tool, Version: string(m[1]), Known: true}
		}
	}
	return Result{Tool: tool}
}

// WriteCSV writes the tool/version table (tab separated, one row per
// tool), unknown versions included as N/A.
func WriteCSV(results []Result, path string) error {
	var buf bytes.Buffer
	for _, r := range results {
		fmt.Fprintf(&buf, "%s\t%s\n", r.Tool, r)
	}
	return writeFile(path, buf.Bytes())
}

const versionsTmpl = `id: 'software_versions'
section_name: 'hlatk Software Versions'
section_href: 'https://github.com/hlatk/hlatk'
plot_type: 'html'
description: 'are collected at run time from the software output.'
data: |
    <dl class="dl-horizontal">
{{rows}}    </dl>
`

// VersionsFragment renders the version table as a MultiQC custom
// content fragment.
func VersionsFragment(results []Result) []byte {
	var rows bytes.Buffer
	for _, r := range results {
		v := r.String()
		if !r.Known {
			v = `<span style="color:#999999;">N/A</span>`
		}
		fmt.Fprintf(&rows, "        <dt>%s</dt><dd><samp>%s</samp></dd>\n", r.Tool, v)
	}
	t := fasttemplate.New(versionsTmpl, "{{", "}}")
	return []byte(t.ExecuteString(map[string]interface{}{"rows": rows.String()}))
}

const summaryTmpl = `id: 'workflow-summary'
section_name: 'hlatk Workflow Summary'
section_href: 'https://github.com/hlatk/hlatk'
plot_type: 'html'
description: 'shows the parameters this run was configured with.'
data: |
    <dl class="dl-horizontal">
{{rows}}    </dl>
`

// SummaryFragment renders the workflow summary for MultiQC.
func SummaryFragment(s config.Summary) []byte {
	var rows bytes.Buffer
	for _, f := range s.Fields {
		fmt.Fprintf(&rows, "        <dt>%s</dt><dd><samp>%s</samp></dd>\n", f.Key, f.Value)
	}
	t := fasttemplate.New(summaryTmpl, "{{", "}}")
	return []byte(t.ExecuteString(map[string]interface{}{"rows": rows.String()}))
}

// MultiQCCmd phrases the aggregation command: scan dir in, report out.
func MultiQCCmd(exe, configPath, scanDir, outDir string) string {
	cmd := fmt.Sprintf("%s -f -o %s", exe, outDir)
	if configPath != "" {
		cmd += " -c " + configPath
	}
	return cmd + " " + scanDir
}

const descriptionTmpl = `<html>
<head><title>hlatk {{version}}: results description</title></head>
<body>
<h1>hlatk output</h1>
<p>hlatk maps sequencing reads against the HLA reference, hands the
mapped reads to the OptiType integer-programming solver, and aggregates
per-stage logs into a MultiQC report.</p>
<dl>
<dt><samp>optitype/&lt;sample&gt;/</samp></dt>
<dd>per-sample typing results: coverage plot and allele table.</dd>
<dt><samp>MultiQC/</samp></dt>
<dd>aggregated run report and its data directory.</dd>
<dt><samp>pipeline_info/</samp></dt>
<dd>software versions, this description and the completion report.</dd>
</dl>
<p>Generated by hlatk {{version}}.</p>
</body>
</html>
`

// Description renders the static results description page.
func Description() []byte {
	t := fasttemplate.New(descriptionTmpl, "{{", "}}")
	return []byte(t.ExecuteString(map[string]interface{}{"version": hlatk.Version}))
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	return os.WriteFile(path, b, 0644)
}

// WriteFragments persists the version CSV, the two MultiQC fragments
// and the results description under the pipeline_info dir.
func WriteFragments(results []Result, s config.Summary, infoDir string) error {
	if err := WriteCSV(results, filepath.Join(infoDir, "software_versions.csv")); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(infoDir, "software_versions_mqc.yaml"), VersionsFragment(results)); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(infoDir, "workflow_summary_mqc.yaml"), SummaryFragment(s)); err != nil {
		return err
	}
	return writeFile(filepath.Join(infoDir, "results_description.html"), Description())
}

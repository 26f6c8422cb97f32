// Package pipeline declares the typing workflow as a scipipe task
// graph: per-sample chains from raw input to solver results. The graph
// is planned as plain data first so the wiring can be inspected and
// tested without an engine.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	sp "github.com/scipipe/scipipe"

	"github.com/hlatk/hlatk/config"
	"github.com/hlatk/hlatk/input"
	"github.com/hlatk/hlatk/optitype"
	"github.com/hlatk/hlatk/yara"
	"github.com/pkg/errors"
)

// Stage is one task node: a shell command with {i:...}/{o:...} port
// placeholders, its output paths, and references to upstream ports in
// "stage.port" form.
type Stage struct {
	Name    string
	Command string
	Outs    map[string]string
	Ins     map[string]string
}

// Plan is the resolved run handed to the engine subprocess.
type Plan struct {
	Config *config.Config `json:"config"`
	Set    *input.Set     `json:"input"`
}

// WritePlan persists a plan as JSON.
func WritePlan(p Plan, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating plan dir")
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding plan")
	}
	return os.WriteFile(path, b, 0644)
}

// ReadPlan loads a persisted plan.
func ReadPlan(path string) (Plan, error) {
	var p Plan
	b, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrap(err, "reading plan")
	}
	return p, errors.Wrap(json.Unmarshal(b, &p), "decoding plan")
}

// ConfigArtifact is the solver configuration shared by every typing
// task of a run.
func ConfigArtifact(cfg *config.Config) (optitype.SolverConfig, string) {
	sc := optitype.SolverConfig{
		Razers3: "razers3",
		Threads: cfg.ClampCPUs(cfg.MaxCPUs),
		Solver:  cfg.Solver,
	}
	return sc, filepath.Join(cfg.OutDir, "optitype", "config.ini")
}

// Stages plans the task graph for a resolved sample set. self is the
// hlatk executable used for the in-process stage helpers. Regardless of
// input mode every chain narrows to the same shape before typing: one
// mapped-only BAM per mate, tagged with the sample identifier.
func Stages(cfg *config.Config, set *input.Set, self string) []Stage {
	work := filepath.Join(cfg.OutDir, "work")
	_, confPath := ConfigArtifact(cfg)
	mapper := yara.Mapper{
		Exe:      cfg.Tools.Yara,
		Samtools: cfg.Tools.Samtools,
		Index:    cfg.Index(),
		CPUs:     cfg.ClampCPUs(cfg.MaxCPUs),
	}
	typer := optitype.Typer{
		Exe:          cfg.Tools.OptiType,
		ConfigPath:   confPath,
		SeqType:      cfg.SeqType,
		Enumerations: cfg.Enumerations,
		Beta:         cfg.Beta,
	}

	var stages []Stage
	for _, smp := range set.Samples {
		fq1 := filepath.Join(work, "fastq", smp.ID+"_1.fastq")
		fq2 := filepath.Join(work, "fastq", smp.ID+"_2.fastq")
		bam1 := filepath.Join(work, "mapped", smp.ID+"_1.bam")
		bam2 := filepath.Join(work, "mapped", smp.ID+"_2.bam")
		done := filepath.Join(work, "done", smp.ID+".done")
		resDir := filepath.Join(cfg.OutDir, "optitype", smp.ID)

		var mapName string
		if set.Mode == input.ModeBAM {
			// the BAM variant re-extracts the read streams before
			// mapping; no separate pre-mapping stage runs.
			ex := Stage{Name: "bamfastq_" + smp.ID}
			if set.Paired {
				ex.Command = self + " bamfastq --fq1 {o:fq1} --fq2 {o:fq2} " + smp.Files[0]
				ex.Outs = map[string]string{"fq1": fq1, "fq2": fq2}
			} else {
				ex.Command = self + " bamfastq --fq1 {o:fq1} " + smp.Files[0]
				ex.Outs = map[string]string{"fq1": fq1}
			}
			stages = append(stages, ex)
			mapName = "remap_" + smp.ID
			stages = append(stages, mapStage(mapName, mapper, set.Paired, ex.Name, bam1, bam2))
		} else {
			gz1 := Stage{
				Name:    "gunzip_" + smp.ID + "_1",
				Command: self + " gunzip " + smp.Files[0] + " {o:fq}",
				Outs:    map[string]string{"fq": fq1},
			}
			stages = append(stages, gz1)
			prev := gz1.Name
			if set.Paired {
				gz2 := Stage{
					Name:    "gunzip_" + smp.ID + "_2",
					Command: self + " gunzip " + smp.Files[1] + " {o:fq}",
					Outs:    map[string]string{"fq": fq2},
				}
				stages = append(stages, gz2)
			}
			mapName = "premap_" + smp.ID
			stages = append(stages, mapStage(mapName, mapper, set.Paired, prev, bam1, bam2))
		}

		ot := Stage{
			Name: "optitype_" + smp.ID,
			Outs: map[string]string{"done": done},
			Ins:  map[string]string{"bam1": mapName + ".bam1"},
		}
		if set.Paired {
			ot.Ins["bam2"] = mapName + ".bam2"
			ot.Command = typer.Cmd([]string{"{i:bam1}", "{i:bam2}"}, resDir, "{o:done}")
		} else {
			ot.Command = typer.Cmd([]string{"{i:bam1}"}, resDir, "{o:done}")
		}
		stages = append(stages, ot)
	}
	return stages
}

// mapStage phrases the shared mapping/filtering node. For paired input
// the upstream gunzip stages are split in two, so the fq2 in-port of a
// FASTQ-mode chain points at the second gunzip stage by convention.
func mapStage(name string, m yara.Mapper, paired bool, upstream string, bam1, bam2 string) Stage {
	st := Stage{
		Name: name,
		Outs: map[string]string{"bam1": bam1},
		Ins:  map[string]string{},
	}
	if paired {
		st.Outs["bam2"] = bam2
		st.Command = m.PairedCmd("{i:fq1}", "{i:fq2}", "{o:bam1}", "{o:bam2}")
		if strings.HasPrefix(upstream, "bamfastq_") {
			st.Ins["fq1"] = upstream + ".fq1"
			st.Ins["fq2"] = upstream + ".fq2"
		} else {
			st.Ins["fq1"] = upstream + ".fq"
			st.Ins["fq2"] = strings.TrimSuffix(upstream, "_1") + "_2.fq"
		}
	} else {
		st.Command = m.SingleCmd("{i:fq1}", "{o:bam1}")
		if strings.HasPrefix(upstream, "bamfastq_") {
			st.Ins["fq1"] = upstream + ".fq1"
		} else {
			st.Ins["fq1"] = upstream + ".fq"
		}
	}
	return st
}

// Build materializes planned stages into a scipipe workflow.
func Build(wf *sp.Workflow, stages []Stage) {
	procs := make(map[string]*sp.Process, len(stages))
	for _, st := range stages {
		p := wf.NewProc(st.Name, st.Command)
		for port, path := range st.Outs {
			p.SetOut(port, path)
		}
		procs[st.Name] = p
	}
	for _, st := range stages {
		for port, ref := range st.Ins {
			// split on the last dot: port names never contain one, but
			// stage names embed sample identifiers that may.
			dot := strings.LastIndex(ref, ".")
			procs[st.Name].In(port).From(procs[ref[:dot]].Out(ref[dot+1:]))
		}
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hlatk/hlatk"
	"github.com/hlatk/hlatk/fastq"
	"github.com/hlatk/hlatk/notify"
	"github.com/hlatk/hlatk/optitype"
	"github.com/hlatk/hlatk/pipeline"
	"github.com/hlatk/hlatk/report"
	"github.com/hlatk/hlatk/shared"
	"github.com/valyala/fasttemplate"
)

type progPair struct {
	name string
	help string
	main func()
}

var progs = []progPair{
	progPair{"run", "resolve inputs and run the full typing workflow", pipeline.Main},
	progPair{"type", "execute the typing task graph from a resolved run plan", pipeline.TypeMain},
	progPair{"gunzip", "normalize a FASTQ(.gz) input to plain FASTQ", fastq.GunzipMain},
	progPair{"bamfastq", "extract per-mate read streams from a BAM", fastq.BamfastqMain},
	progPair{"config", "write the OptiType solver configuration artifact", optitype.Main},
	progPair{"versions", "probe wrapped tool versions and write the version report", report.Main},
	progPair{"notify", "render and deliver the workflow completion summary", notify.Main},
}

func Description() string {
	tmpl := `hlatk version: {{version}}

hlatk calls several programs. Those with 'Y' are found on your $PATH. Only those with '*' are required.

 *[{{yara_mapper}}] yara_mapper [map reads against the HLA reference]
 *[{{samtools}}] samtools [flag filtering and mate splitting]
 *[{{optitype}}] OptiTypePipeline.py [IP-based allele typing]

  [{{multiqc}}] multiqc [aggregated run report]
  [{{sendmail}}] sendmail [completion notification]
  [{{mail}}] mail [notification fallback]

Available sub-commands are below. Each can be run with -h for additional help.

`
	t := fasttemplate.New(tmpl, "{{", "}}")

	vars := map[string]interface{}{
		"version":     hlatk.Version,
		"yara_mapper": shared.HasProg("yara_mapper"),
		"samtools":    shared.HasProg("samtools"),
		"optitype":    shared.HasProg("OptiTypePipeline.py"),
		"multiqc":     shared.HasProg("multiqc"),
		"sendmail":    shared.HasProg("sendmail"),
		"mail":        shared.HasProg("mail"),
	}
	return t.ExecuteString(vars)
}

func printProgs() {

	var wtr io.Writer = os.Stdout

	fmt.Fprintf(wtr, Description())
	var keys []string
	l := 5
	for _, p := range progs {
		keys = append(keys, p.name)
		if len(p.name) > l {
			l = len(p.name)
		}
	}
	fmtr := "%-" + strconv.Itoa(l) + "s : %s\n"

	for _, p := range progs {
		fmt.Fprintf(wtr, fmtr, p.name, p.help)
	}
	os.Exit(1)

}

func get(name string) (*progPair, bool) {
	for _, p := range progs {
		if p.name == name {
			return &p, true
		}
	}
	return nil, false
}

func main() {

	if len(os.Args) < 2 {
		printProgs()
	}
	var p *progPair
	var ok bool
	if p, ok = get(os.Args[1]); !ok {
		printProgs()
	}
	// remove the prog name from the call
	os.Args = append(os.Args[:1], os.Args[2:]...)
	shared.Slogger.Printf("starting with version %s", hlatk.Version)
	(*p).main()
}

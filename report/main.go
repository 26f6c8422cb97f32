package report

import (
	"path/filepath"

	arg "github.com/alexflint/go-arg"

	"github.com/hlatk/hlatk/config"
	"github.com/hlatk/hlatk/shared"
)

type cliargs struct {
	OutDir string `arg:"-o,required,help:directory to write the version files into."`
}

func (cliargs) Description() string {
	return "probe wrapped tool versions and write the version report files"
}

// Main is the `hlatk versions` entry point.
func Main() {
	cli := cliargs{}
	arg.MustParse(&cli)
	results := ProbeAll(config.LoadTools())
	if err := WriteCSV(results, filepath.Join(cli.OutDir, "software_versions.csv")); err != nil {
		shared.Slogger.Fatal(err)
	}
	if err := writeFile(filepath.Join(cli.OutDir, "software_versions_mqc.yaml"), VersionsFragment(results)); err != nil {
		shared.Slogger.Fatal(err)
	}
	for _, r := range results {
		shared.Slogger.Printf("%s: %s", r.Tool, r)
	}
}

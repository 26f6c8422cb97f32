package optitype

import (
	arg "github.com/alexflint/go-arg"

	"github.com/hlatk/hlatk/shared"
)

type cliargs struct {
	CPUs   int    `arg:"-p,help:thread budget for the solver's internal mapper."`
	Solver string `arg:"-s,help:IP solver: glpk or cbc."`
	Out    string `arg:"-o,required,help:path of the config artifact to write."`
}

func (cliargs) Description() string {
	return "write the OptiType solver configuration artifact"
}

// Main is the `hlatk config` entry point.
func Main() {
	cli := cliargs{CPUs: 4, Solver: "glpk"}
	arg.MustParse(&cli)
	c := SolverConfig{Razers3: "razers3", Threads: cli.CPUs, Solver: cli.Solver}
	if err := c.Write(cli.Out); err != nil {
		shared.Slogger.Fatal(err)
	}
	shared.Slogger.Printf("wrote solver config to %s", cli.Out)
}

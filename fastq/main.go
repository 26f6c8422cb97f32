package fastq

import (
	arg "github.com/alexflint/go-arg"

	"github.com/hlatk/hlatk/shared"
)

type gunzipargs struct {
	In  string `arg:"positional,required,help:FASTQ or FASTQ.gz input."`
	Out string `arg:"positional,required,help:plain FASTQ output."`
}

func (gunzipargs) Description() string {
	return "normalize a FASTQ(.gz) input to plain FASTQ preserving read order"
}

// GunzipMain is the `hlatk gunzip` stage helper entry point.
func GunzipMain() {
	cli := gunzipargs{}
	arg.MustParse(&cli)
	if err := Gunzip(cli.In, cli.Out); err != nil {
		shared.Slogger.Fatal(err)
	}
}

type bamfastqargs struct {
	Fq1 string `arg:"--fq1,required,help:output FASTQ for mate 1 (or all reads when unpaired)."`
	Fq2 string `arg:"--fq2,help:output FASTQ for mate 2; omit for unpaired input."`
	Bam string `arg:"positional,required,help:input BAM."`
}

func (bamfastqargs) Description() string {
	return "extract per-mate read streams from a BAM on the 0x40/0x80 flag bits"
}

// BamfastqMain is the `hlatk bamfastq` stage helper entry point.
func BamfastqMain() {
	cli := bamfastqargs{}
	arg.MustParse(&cli)
	if cli.Fq2 == "" {
		n, err := Extract(cli.Bam, cli.Fq1)
		if err != nil {
			shared.Slogger.Fatal(err)
		}
		shared.Slogger.Printf("extracted %d reads from %s", n, cli.Bam)
		return
	}
	n1, n2, err := ExtractPaired(cli.Bam, cli.Fq1, cli.Fq2)
	if err != nil {
		shared.Slogger.Fatal(err)
	}
	shared.Slogger.Printf("extracted %d/%d mate reads from %s", n1, n2, cli.Bam)
}

// Package yara builds the mapper + filter shell commands shared by the
// FASTQ pre-mapping stage and the BAM re-mapping stage. Both produce
// the same shape: one mapped-only BAM per mate.
package yara

import (
	"fmt"
)

// DefaultErrors is the yara_mapper -e error budget.
const DefaultErrors = 3

// SAM flag bits used for filtering and mate splitting.
const (
	FlagUnmapped = 0x4
	FlagMate1    = 0x40
	FlagMate2    = 0x80
)

// Mapper holds everything needed to phrase a mapping command. The
// in/out arguments of the Cmd methods are plain strings so callers can
// pass either literal paths or workflow-engine port placeholders.
type Mapper struct {
	Exe      string
	Samtools string
	Index    string
	CPUs     int
}

// PairedCmd maps two mates against the reference and splits the mapped
// records (-F 0x4) back into per-mate BAMs on the 0x40/0x80 flag bits.
func (m Mapper) PairedCmd(fq1, fq2, out1, out2 string) string {
	return fmt.Sprintf("set -euo pipefail; t=$(mktemp -d)"+
		" && %s -e %d -t %d -f bam %s %s %s > $t/yara.bam"+
		" && %s view -@ %d -h -F %#x -f %#x -b1 $t/yara.bam > %s"+
		" && %s view -@ %d -h -F %#x -f %#x -b1 $t/yara.bam > %s"+
		" && rm -rf $t",
		m.Exe, DefaultErrors, m.CPUs, m.Index, fq1, fq2,
		m.Samtools, m.CPUs, FlagUnmapped, FlagMate1, out1,
		m.Samtools, m.CPUs, FlagUnmapped, FlagMate2, out2)
}

// SingleCmd maps one read file and keeps mapped records only.
func (m Mapper) SingleCmd(fq, out string) string {
	return fmt.Sprintf("set -euo pipefail; %s -e %d -t %d -f bam %s %s"+
		" | %s view -@ %d -h -F %#x -b1 - > %s",
		m.Exe, DefaultErrors, m.CPUs, m.Index, fq,
		m.Samtools, m.CPUs, FlagUnmapped, out)
}

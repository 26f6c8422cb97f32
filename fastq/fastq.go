// Package fastq implements the in-process stage helpers that normalize
// arbitrary input into plain FASTQ: transparent decompression and
// extraction of per-mate read streams from BAM.
package fastq

import (
	"bufio"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/brentp/xopen"
	"github.com/hlatk/hlatk/shared"
	"github.com/pkg/errors"
)

// Gunzip copies src to dst, decompressing if needed. Read order is
// preserved; plain files pass through unchanged.
func Gunzip(src, dst string) error {
	rdr, err := xopen.Ropen(src)
	if err != nil {
		return &shared.ExternalToolError{Tool: "gunzip", Err: err}
	}
	defer rdr.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "creating %s", dst)
	}
	w := bufio.NewWriter(out)
	if _, err := io.Copy(w, rdr); err != nil {
		out.Close()
		return &shared.ExternalToolError{Tool: "gunzip", Err: err}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing %s", dst)
	}
	return out.Close()
}

// ExtractPaired streams a BAM into two FASTQ files split on the
// mate-pair flag bits (0x40 -> fq1, 0x80 -> fq2). Secondary and
// supplementary alignments are skipped so each template contributes one
// read per mate. Returns the per-mate read counts.
func ExtractPaired(bamPath, fq1, fq2 string) (n1, n2 int, err error) {
	w1, err := xopen.Wopen(fq1)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "creating %s", fq1)
	}
	w2, err := xopen.Wopen(fq2)
	if err != nil {
		w1.Close()
		return 0, 0, errors.Wrapf(err, "creating %s", fq2)
	}

	err = eachRecord(bamPath, func(r *sam.Record) error {
		switch {
		case r.Flags&sam.Read1 != 0:
			n1++
			return writeFastq(w1, r)
		case r.Flags&sam.Read2 != 0:
			n2++
			return writeFastq(w2, r)
		}
		return nil
	})
	// a failed close means a failed flush, so a truncated output file.
	if cerr := w1.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "writing %s", fq1)
	}
	if cerr := w2.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "writing %s", fq2)
	}
	return n1, n2, err
}

// Extract streams every primary record of a BAM into a single FASTQ.
func Extract(bamPath, fq string) (n int, err error) {
	w, err := xopen.Wopen(fq)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", fq)
	}
	err = eachRecord(bamPath, func(r *sam.Record) error {
		n++
		return writeFastq(w, r)
	})
	if cerr := w.Close(); cerr != nil && err == nil {
		err = errors.Wrapf(cerr, "writing %s", fq)
	}
	return n, err
}

func eachRecord(path string, fn func(*sam.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	br, err := bam.NewReader(f, 2)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	defer br.Close()
	for {
		rec, err := br.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		if rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// writeFastq emits one record in original read orientation: reads
// aligned to the reverse strand are complemented back.
func writeFastq(w *xopen.Writer, r *sam.Record) error {
	seq := r.Seq.Expand()
	qual := make([]byte, len(r.Qual))
	for i, q := range r.Qual {
		qual[i] = q + 33
	}
	if r.Flags&sam.Reverse != 0 {
		seq = revComp(seq)
		reverse(qual)
	}
	if _, err := w.WriteString("@" + r.Name + "\n"); err != nil {
		return err
	}
	if _, err := w.Write(seq); err != nil {
		return err
	}
	if _, err := w.WriteString("\n+\n"); err != nil {
		return err
	}
	if _, err := w.Write(qual); err != nil {
		return err
	}
	_, err := w.WriteString("\n")
	return err
}

var comp = [256]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A', 'N': 'N',
	'a': 't', 'c': 'g', 'g': 'c', 't': 'a', 'n': 'n'}

func revComp(s []byte) []byte {
	out := make([]byte, len(s))
	for i, b := range s {
		c := comp[b]
		if c == 0 {
			c = 'N'
		}
		out[len(s)-1-i] = c
	}
	return out
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

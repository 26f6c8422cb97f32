package fastq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type ExtractTest struct {
	ref *sam.Reference
	hdr *sam.Header
}

var _ = Suite(&ExtractTest{})

// the header is built up front so the reference carries a valid ID by
// the time records link to it.
func (s *ExtractTest) SetUpSuite(c *C) {
	ref, err := sam.NewReference("HLA-A", "", "", 4000, nil, nil)
	c.Assert(err, IsNil)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	c.Assert(err, IsNil)
	s.ref = ref
	s.hdr = h
}

func (s *ExtractTest) record(c *C, name string, flags sam.Flags, seq string) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	co := []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, len(seq))}
	r, err := sam.NewRecord(name, s.ref, nil, 10, -1, 0, 40, co, []byte(seq), qual, nil)
	c.Assert(err, IsNil)
	r.Flags |= flags
	return r
}

func (s *ExtractTest) writeBam(c *C, path string, recs []*sam.Record) {
	f, err := os.Create(path)
	c.Assert(err, IsNil)
	w, err := bam.NewWriter(f, s.hdr, 1)
	c.Assert(err, IsNil)
	for _, r := range recs {
		c.Assert(w.Write(r), IsNil)
	}
	c.Assert(w.Close(), IsNil)
	c.Assert(f.Close(), IsNil)
}

func readFastq(c *C, path string) []string {
	b, err := os.ReadFile(path)
	c.Assert(err, IsNil)
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

// Splitting on 0x40/0x80 and rejoining by name must reconstruct the
// original pair count.
func (s *ExtractTest) TestPairedRoundTrip(c *C) {
	dir := c.MkDir()
	bamPath := filepath.Join(dir, "sampleB.bam")
	var recs []*sam.Record
	for _, name := range []string{"t1", "t2", "t3"} {
		recs = append(recs,
			s.record(c, name, sam.Paired|sam.Read1, "ACGTACGT"),
			s.record(c, name, sam.Paired|sam.Read2, "TTGGCCAA"))
	}
	// secondary and supplementary records must not contribute reads.
	sec := s.record(c, "t1", sam.Paired|sam.Read1|sam.Secondary, "ACGTACGT")
	sup := s.record(c, "t2", sam.Paired|sam.Read2|sam.Supplementary, "TTGGCCAA")
	recs = append(recs, sec, sup)
	s.writeBam(c, bamPath, recs)

	fq1 := filepath.Join(dir, "sampleB_1.fastq")
	fq2 := filepath.Join(dir, "sampleB_2.fastq")
	n1, n2, err := ExtractPaired(bamPath, fq1, fq2)
	c.Assert(err, IsNil)
	c.Assert(n1, Equals, 3)
	c.Assert(n2, Equals, 3)

	lines1 := readFastq(c, fq1)
	lines2 := readFastq(c, fq2)
	c.Assert(len(lines1), Equals, 12)
	c.Assert(len(lines2), Equals, 12)

	names1 := map[string]bool{}
	for i := 0; i < len(lines1); i += 4 {
		names1[strings.TrimPrefix(lines1[i], "@")] = true
	}
	for i := 0; i < len(lines2); i += 4 {
		name := strings.TrimPrefix(lines2[i], "@")
		c.Assert(names1[name], Equals, true)
	}
}

func (s *ExtractTest) TestReverseStrandRestored(c *C) {
	dir := c.MkDir()
	bamPath := filepath.Join(dir, "rev.bam")
	rec := s.record(c, "r1", sam.Paired|sam.Read1|sam.Reverse, "AAAACCCC")
	mate := s.record(c, "r1", sam.Paired|sam.Read2, "ACGTACGT")
	s.writeBam(c, bamPath, []*sam.Record{rec, mate})

	fq1 := filepath.Join(dir, "rev_1.fastq")
	fq2 := filepath.Join(dir, "rev_2.fastq")
	_, _, err := ExtractPaired(bamPath, fq1, fq2)
	c.Assert(err, IsNil)

	lines := readFastq(c, fq1)
	// reverse complement of AAAACCCC.
	c.Assert(lines[1], Equals, "GGGGTTTT")
}

func (s *ExtractTest) TestSingleExtract(c *C) {
	dir := c.MkDir()
	bamPath := filepath.Join(dir, "single.bam")
	recs := []*sam.Record{
		s.record(c, "a", 0, "ACGT"),
		s.record(c, "b", 0, "GGCC"),
	}
	s.writeBam(c, bamPath, recs)

	fq := filepath.Join(dir, "single.fastq")
	n, err := Extract(bamPath, fq)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 2)
	lines := readFastq(c, fq)
	c.Assert(len(lines), Equals, 8)
	c.Assert(lines[0], Equals, "@a")
	// Phred 30 encodes as '?'.
	c.Assert(lines[3], Equals, "????")
}

func (s *ExtractTest) TestExtractBadDestination(c *C) {
	dir := c.MkDir()
	bamPath := filepath.Join(dir, "x.bam")
	s.writeBam(c, bamPath, []*sam.Record{s.record(c, "a", sam.Paired|sam.Read1, "ACGT")})

	fq1 := filepath.Join(dir, "x_1.fastq")
	_, _, err := ExtractPaired(bamPath, fq1, filepath.Join(dir, "missing", "x_2.fastq"))
	c.Assert(err, NotNil)

	_, err = Extract(bamPath, filepath.Join(dir, "missing", "x.fastq"))
	c.Assert(err, NotNil)
}

func TestGunzipPlain(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.fastq")
	content := "@r1\nACGT\n+\nIIII\n"
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.fastq")
	if err := Gunzip(src, dst); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != content {
		t.Errorf("plain passthrough changed content: %q", b)
	}
}

func TestRevComp(t *testing.T) {
	if got := string(revComp([]byte("AACCGGTT"))); got != "AACCGGTT" {
		t.Errorf("revComp(AACCGGTT) = %q", got)
	}
	if got := string(revComp([]byte("ACGT"))); got != "ACGT" {
		t.Errorf("revComp(ACGT) = %q", got)
	}
	if got := string(revComp([]byte("AAAA"))); got != "TTTT" {
		t.Errorf("revComp(AAAA) = %q", got)
	}
	if got := string(revComp([]byte("NGCA"))); got != "TGCN" {
		t.Errorf("revComp(NGCA) = %q", got)
	}
}

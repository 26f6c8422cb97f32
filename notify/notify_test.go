package notify

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hlatk/hlatk/config"
)

func summary(success bool) Summary {
	start := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	errMsg := ""
	if !success {
		errMsg = "task premap_a exited 1"
	}
	return Summary{
		RunName: "test-run",
		Success: success,
		Completion: config.Completion{
			Start:    start,
			End:      start.Add(90 * time.Minute),
			Success:  success,
			ErrorMsg: errMsg,
		},
		Fields:      []config.Field{{Key: "Seq Type", Value: "dna"}},
		CommandLine: "hlatk run -i reads/*.fastq.gz --seqtype dna",
	}
}

func TestRenderBothRepresentations(t *testing.T) {
	s := summary(true)
	text := string(s.Text())
	html := string(s.HTML())

	for _, want := range []string{"test-run", "Seq Type", "dna", "1h30m0s",
		"hlatk run -i reads/*.fastq.gz --seqtype dna", "completed successfully"} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q", want)
		}
		if !strings.Contains(html, want) {
			t.Errorf("html report missing %q", want)
		}
	}
	if !strings.Contains(html, "<table") {
		t.Error("html report must carry the configuration table")
	}
}

func TestRenderFailure(t *testing.T) {
	s := summary(false)
	text := string(s.Text())
	if !strings.Contains(text, "completed with errors") {
		t.Error("failure status missing")
	}
	if !strings.Contains(text, "task premap_a exited 1") {
		t.Error("error report missing")
	}
	if s.Subject() != "[hlatk] FAILED: test-run" {
		t.Errorf("subject = %q", s.Subject())
	}
	if summary(true).Subject() != "[hlatk] successful: test-run" {
		t.Errorf("success subject = %q", summary(true).Subject())
	}
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	s := summary(true)
	if err := Persist(s, dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"pipeline_report.txt", "pipeline_report.html"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if !bytes.Contains(b, []byte("test-run")) {
			t.Errorf("%s does not mention the run name", name)
		}
	}
}

func TestAttachmentCeiling(t *testing.T) {
	dir := t.TempDir()
	rep := filepath.Join(dir, "multiqc_report.html")
	if err := os.WriteFile(rep, bytes.Repeat([]byte("x"), 100), 0644); err != nil {
		t.Fatal(err)
	}
	m := Mailer{MaxSize: 10}
	if got := m.Attachment(rep); got != "" {
		t.Errorf("over-ceiling report must be omitted, got %q", got)
	}
	m.MaxSize = 1000
	if got := m.Attachment(rep); got != rep {
		t.Errorf("under-ceiling report must ride along, got %q", got)
	}
	if got := m.Attachment(filepath.Join(dir, "nope.html")); got != "" {
		t.Errorf("missing report must be omitted, got %q", got)
	}
}

// An oversized report must still produce a deliverable message, just
// without the attachment.
func TestMessageOmitsBigAttachment(t *testing.T) {
	dir := t.TempDir()
	rep := filepath.Join(dir, "multiqc_report.html")
	if err := os.WriteFile(rep, bytes.Repeat([]byte("x"), 2048), 0644); err != nil {
		t.Fatal(err)
	}
	s := summary(true)
	s.ReportPath = rep

	m := Mailer{To: "a@b.se", MaxSize: 100}
	msg, err := m.Message(s)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(msg, []byte("Content-Disposition: attachment")) {
		t.Error("oversized attachment must be dropped from the message")
	}
	if !bytes.Contains(msg, []byte("Subject: [hlatk] successful: test-run")) {
		t.Error("message missing subject")
	}

	m.MaxSize = 1 << 20
	msg, err = m.Message(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(msg, []byte("Content-Disposition: attachment")) {
		t.Error("small attachment must be included")
	}
}

func TestMessagePlaintext(t *testing.T) {
	s := summary(true)
	m := Mailer{To: "a@b.se", Plaintext: true}
	msg, err := m.Message(s)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(msg, []byte("text/html")) {
		t.Error("plaintext message must not carry an html part")
	}
	if !bytes.Contains(msg, []byte("text/plain")) {
		t.Error("plaintext message must carry the text part")
	}
}

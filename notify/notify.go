// Package notify renders and delivers the workflow completion summary.
// Delivery is best effort: sendmail first, mail(1) as fallback, and the
// rendered reports are always persisted to disk whatever happens.
package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/hlatk/hlatk"
	"github.com/hlatk/hlatk/config"
	"github.com/hlatk/hlatk/shared"
	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
)

// DeliveryError wraps a failed delivery attempt. It is non-fatal:
// callers log it and move on once the reports are persisted.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %s", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Summary is the single field set both report representations are
// rendered from.
type Summary struct {
	RunName     string
	Success     bool
	Completion  config.Completion
	Fields      []config.Field
	CommandLine string
	ReportPath  string
}

const textTmpl = `----------------------------------------------------
 hlatk v{{version}}
----------------------------------------------------
Run Name: {{runname}}

{{status}}
The workflow completed at {{date}} (duration: {{duration}}).

The command used to launch the workflow was as follows:

  {{commandline}}

Pipeline Configuration:
{{fields}}
--
hlatk
https://github.com/hlatk/hlatk
`

const htmlTmpl = `<html>
<body style="font-family: Helvetica, Arial, sans-serif">
<h2>hlatk v{{version}}</h2>
<h3>Run Name: {{runname}}</h3>
<p>{{status}}</p>
<p>The workflow completed at {{date}} (duration: {{duration}}).</p>
<p>The command used to launch the workflow was as follows:</p>
<pre>{{commandline}}</pre>
<h4>Pipeline Configuration:</h4>
<table border="1" cellpadding="4" cellspacing="0">
{{fields}}</table>
<p>hlatk &mdash; <a href="https://github.com/hlatk/hlatk">github.com/hlatk/hlatk</a></p>
</body>
</html>
`

func (s Summary) status() string {
	if s.Success {
		return "Pipeline completed successfully."
	}
	msg := "#### Pipeline completed with errors ####"
	if s.Completion.ErrorMsg != "" {
		msg += "\n" + s.Completion.ErrorMsg
	}
	return msg
}

func (s Summary) vars(fields string) map[string]interface{} {
	return map[string]interface{}{
		"version":     hlatk.Version,
		"runname":     s.RunName,
		"status":      s.status(),
		"date":        s.Completion.End.Format(time.RFC1123),
		"duration":    s.Completion.Duration().Round(time.Second).String(),
		"commandline": s.CommandLine,
		"fields":      fields,
	}
}

// Text renders the plain representation.
func (s Summary) Text() []byte {
	var rows bytes.Buffer
	for _, f := range s.Fields {
		fmt.Fprintf(&rows, "  %s: %s\n", f.Key, f.Value)
	}
	t := fasttemplate.New(textTmpl, "{{", "}}")
	return []byte(t.ExecuteString(s.vars(rows.String())))
}

// HTML renders the rich representation from the same field set.
func (s Summary) HTML() []byte {
	var rows bytes.Buffer
	for _, f := range s.Fields {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td><samp>%s</samp></td></tr>\n", f.Key, f.Value)
	}
	t := fasttemplate.New(htmlTmpl, "{{", "}}")
	return []byte(t.ExecuteString(s.vars(rows.String())))
}

// Subject is the notification subject line.
func (s Summary) Subject() string {
	if s.Success {
		return fmt.Sprintf("[hlatk] successful: %s", s.RunName)
	}
	return fmt.Sprintf("[hlatk] FAILED: %s", s.RunName)
}

// Persist writes both renderings under the pipeline_info dir. Called
// unconditionally, before any delivery attempt.
func Persist(s Summary, infoDir string) error {
	if err := os.MkdirAll(infoDir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", infoDir)
	}
	if err := os.WriteFile(filepath.Join(infoDir, "pipeline_report.txt"), s.Text(), 0644); err != nil {
		return errors.Wrap(err, "persisting text report")
	}
	return errors.Wrap(
		os.WriteFile(filepath.Join(infoDir, "pipeline_report.html"), s.HTML(), 0644),
		"persisting html report")
}

// Mailer delivers a Summary over email.
type Mailer struct {
	Tools     config.Tools
	To        string
	MaxSize   uint64
	Plaintext bool
}

// Attachment decides whether the aggregated report rides along: a file
// over the size ceiling is omitted rather than failing the delivery.
func (m Mailer) Attachment(path string) string {
	if path == "" {
		return ""
	}
	st, err := os.Stat(path)
	if err != nil {
		shared.Slogger.Printf("report %s not found; sending without attachment", path)
		return ""
	}
	if m.MaxSize > 0 && uint64(st.Size()) > m.MaxSize {
		shared.Slogger.Printf("report is %s, over the %s ceiling; sending without attachment",
			bytefmt.ByteSize(uint64(st.Size())), bytefmt.ByteSize(m.MaxSize))
		return ""
	}
	return path
}

// Message assembles the full MIME message for sendmail.
func (m Mailer) Message(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "To: %s\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\n", s.Subject())
	fmt.Fprintf(&buf, "MIME-Version: 1.0\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\n\n", w.Boundary())

	tp, err := w.CreatePart(textHeader("text/plain; charset=utf-8"))
	if err != nil {
		return nil, err
	}
	if _, err := tp.Write(s.Text()); err != nil {
		return nil, err
	}
	if !m.Plaintext {
		hp, err := w.CreatePart(textHeader("text/html; charset=utf-8"))
		if err != nil {
			return nil, err
		}
		if _, err := hp.Write(s.HTML()); err != nil {
			return nil, err
		}
	}
	if attach := m.Attachment(s.ReportPath); attach != "" {
		b, err := os.ReadFile(attach)
		if err != nil {
			return nil, err
		}
		ap, err := w.CreatePart(attachmentHeader(filepath.Base(attach)))
		if err != nil {
			return nil, err
		}
		enc := base64.NewEncoder(base64.StdEncoding, ap)
		if _, err := enc.Write(b); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deliver tries sendmail, then falls back to mail(1). The returned
// error is a DeliveryError describing the last attempt.
func (m Mailer) Deliver(s Summary) error {
	msg, err := m.Message(s)
	if err != nil {
		return &DeliveryError{Channel: "sendmail", Err: err}
	}
	cmd := exec.Command(m.Tools.Sendmail, "-t")
	cmd.Stdin = bytes.NewReader(msg)
	cmd.Stderr = shared.Slogger
	if err := cmd.Run(); err == nil {
		shared.Slogger.Printf("sent completion notification to %s via sendmail", m.To)
		return nil
	}
	shared.Slogger.Printf("sendmail failed; falling back to mail")
	cmd = exec.Command(m.Tools.Mail, "-s", s.Subject(), m.To)
	cmd.Stdin = bytes.NewReader(s.Text())
	cmd.Stderr = shared.Slogger
	if err := cmd.Run(); err != nil {
		return &DeliveryError{Channel: "mail", Err: err}
	}
	shared.Slogger.Printf("sent completion notification to %s via mail", m.To)
	return nil
}

func textHeader(ct string) textproto.MIMEHeader {
	return textproto.MIMEHeader{"Content-Type": {ct}}
}

func attachmentHeader(name string) textproto.MIMEHeader {
	return textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", name)},
	}
}

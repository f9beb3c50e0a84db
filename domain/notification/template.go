package notification

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// TemplateData contains all the fields available for email template rendering
type TemplateData struct {
	Greeting   string
	RunID      string
	Source     string
	DateTime   string // e.g. "2025-12-28 14:05"
	Duration   string
	Status     string // "completed", "completed with failures", or "aborted"
	AbortCause string
	Written    int
	Failed     int
	Videos     []VideoLine
	SenderName string
}

// EmailTemplate contains the templates for rendering emails
type EmailTemplate struct {
	SubjectFormat string
	PlainText     string
	HTML          string
}

// DefaultTemplate is the standard run report template
var DefaultTemplate = EmailTemplate{
	SubjectFormat: "Transcription run {{.Status}}: {{.Written}} written, {{.Failed}} failed",
	PlainText: `{{.Greeting}}

The transcription run for {{.Source}} started {{.DateTime}} has {{.Status}} in {{.Duration}}.
{{if .AbortCause}}
Aborted: {{.AbortCause}}
{{end}}
{{range .Videos}}- {{.Name}}: {{.State}}{{if .Output}} -> {{.Output}}{{end}}{{if .Cause}} ({{.Cause}}){{end}}
{{end}}
Run id: {{.RunID}}
~{{.SenderName}}`,
	HTML: `<div dir="ltr">{{.Greeting}}<br><br>
The transcription run for <b>{{.Source}}</b> started {{.DateTime}} has {{.Status}} in {{.Duration}}.<br>
{{if .AbortCause}}<p>Aborted: {{.AbortCause}}</p>{{end}}
<ul>{{range .Videos}}<li>{{.Name}}: {{.State}}{{if .Output}} &rarr; {{.Output}}{{end}}{{if .Cause}} ({{.Cause}}){{end}}</li>{{end}}</ul>
Run id: {{.RunID}}<br>
~{{.SenderName}}</div>`,
}

// FormatGreeting creates an appropriate greeting based on number of recipients
// 1 recipient: "Dear John,"
// 2 recipients: "Dear John & Jane,"
// 3+ recipients: "Hey Everyone!"
func FormatGreeting(recipients []Recipient) string {
	switch len(recipients) {
	case 0:
		return "Hello,"
	case 1:
		name := getFirstName(recipients[0].Name)
		return fmt.Sprintf("Dear %s,", name)
	case 2:
		name1 := getFirstName(recipients[0].Name)
		name2 := getFirstName(recipients[1].Name)
		return fmt.Sprintf("Dear %s & %s,", name1, name2)
	default:
		return "Hey Everyone!"
	}
}

func getFirstName(fullName string) string {
	if fullName == "" {
		return "Friend"
	}
	for i, c := range fullName {
		if c == ' ' {
			return fullName[:i]
		}
	}
	return fullName
}

// FormatStatus summarises how the run ended
func FormatStatus(aborted bool, failed int) string {
	switch {
	case aborted:
		return "aborted"
	case failed > 0:
		return "completed with failures"
	default:
		return "completed"
	}
}

// NewTemplateData builds template fields from a request
func NewTemplateData(req *ReportEmailRequest) TemplateData {
	return TemplateData{
		Greeting:   FormatGreeting(req.To),
		RunID:      req.RunID,
		Source:     req.Source,
		DateTime:   req.StartedAt.Format("2006-01-02 15:04"),
		Duration:   req.Duration.Round(time.Second).String(),
		Status:     FormatStatus(req.Aborted, req.Failed()),
		AbortCause: req.AbortCause,
		Written:    req.Written(),
		Failed:     req.Failed(),
		Videos:     req.Videos,
		SenderName: req.SenderName,
	}
}

// RenderSubject renders the email subject using the template
func (t *EmailTemplate) RenderSubject(data TemplateData) (string, error) {
	return renderTemplate("subject", t.SubjectFormat, data)
}

// RenderPlainText renders the plain text email body
func (t *EmailTemplate) RenderPlainText(data TemplateData) (string, error) {
	return renderTemplate("plaintext", t.PlainText, data)
}

// RenderHTML renders the HTML email body
func (t *EmailTemplate) RenderHTML(data TemplateData) (string, error) {
	return renderTemplate("html", t.HTML, data)
}

func renderTemplate(name, tmplStr string, data TemplateData) (string, error) {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

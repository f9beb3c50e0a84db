package notification

import (
	"strings"
	"testing"
	"time"
)

func TestEmailTemplate_RenderSubject(t *testing.T) {
	data := TemplateData{Status: "completed with failures", Written: 2, Failed: 1}

	subject, err := DefaultTemplate.RenderSubject(data)
	if err != nil {
		t.Fatalf("RenderSubject() error = %v", err)
	}

	expected := "Transcription run completed with failures: 2 written, 1 failed"
	if subject != expected {
		t.Errorf("RenderSubject() = %q, want %q", subject, expected)
	}
}

func TestEmailTemplate_RenderPlainText(t *testing.T) {
	req := &ReportEmailRequest{
		To:         []Recipient{{Name: "John Doe", Address: "john@example.com"}},
		RunID:      "3f1c",
		Source:     "local/multiple /videos",
		StartedAt:  time.Date(2025, 12, 28, 14, 5, 0, 0, time.UTC),
		Duration:   95 * time.Second,
		SenderName: "video-transcriber",
		Videos: []VideoLine{
			{Name: "a", State: "WRITTEN", Output: "output/a.txt"},
			{Name: "b", State: "FAILED", Cause: "ExtractionError: no audio stream"},
		},
	}

	body, err := DefaultTemplate.RenderPlainText(NewTemplateData(req))
	if err != nil {
		t.Fatalf("RenderPlainText() error = %v", err)
	}

	checks := []string{
		"Dear John,",
		"local/multiple /videos",
		"2025-12-28 14:05",
		"completed with failures in 1m35s",
		"- a: WRITTEN -> output/a.txt",
		"- b: FAILED (ExtractionError: no audio stream)",
		"Run id: 3f1c",
		"~video-transcriber",
	}
	for _, check := range checks {
		if !strings.Contains(body, check) {
			t.Errorf("RenderPlainText() missing %q in:\n%s", check, body)
		}
	}
	if strings.Contains(body, "Aborted:") {
		t.Errorf("RenderPlainText() should not mention abort for a completed run:\n%s", body)
	}
}

func TestEmailTemplate_RenderHTML_Aborted(t *testing.T) {
	req := &ReportEmailRequest{
		To:         []Recipient{{Name: "A", Address: "a@example.com"}, {Name: "B", Address: "b@example.com"}},
		RunID:      "r",
		StartedAt:  time.Now(),
		Aborted:    true,
		AbortCause: "AuthError: token expired",
	}

	body, err := DefaultTemplate.RenderHTML(NewTemplateData(req))
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	for _, check := range []string{"Dear A & B,", "has aborted", "<p>Aborted: AuthError: token expired</p>"} {
		if !strings.Contains(body, check) {
			t.Errorf("RenderHTML() missing %q in:\n%s", check, body)
		}
	}
}

func TestFormatGreeting(t *testing.T) {
	tests := []struct {
		name       string
		recipients []Recipient
		want       string
	}{
		{"none", nil, "Hello,"},
		{"one", []Recipient{{Name: "John Doe"}}, "Dear John,"},
		{"one without name", []Recipient{{Address: "x@example.com"}}, "Dear Friend,"},
		{"two", []Recipient{{Name: "John Doe"}, {Name: "Jane Roe"}}, "Dear John & Jane,"},
		{"three", []Recipient{{Name: "A"}, {Name: "B"}, {Name: "C"}}, "Hey Everyone!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatGreeting(tt.recipients); got != tt.want {
				t.Errorf("FormatGreeting() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	if got := FormatStatus(true, 0); got != "aborted" {
		t.Errorf("FormatStatus(aborted) = %q", got)
	}
	if got := FormatStatus(false, 2); got != "completed with failures" {
		t.Errorf("FormatStatus(failures) = %q", got)
	}
	if got := FormatStatus(false, 0); got != "completed" {
		t.Errorf("FormatStatus(ok) = %q", got)
	}
}

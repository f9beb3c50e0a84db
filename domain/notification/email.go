package notification

import (
	"time"
)

// Recipient represents an email recipient with name and address
type Recipient struct {
	Name    string
	Address string
}

// VideoLine is one row of the per-video section of a run report email
type VideoLine struct {
	Name   string
	State  string
	Output string // output path for written videos
	Cause  string // readable failure cause for failed videos
}

// ReportEmailRequest contains all the data needed to send a run report
type ReportEmailRequest struct {
	To         []Recipient
	CC         []Recipient
	RunID      string
	Source     string // e.g. "drive/multiple folder123"
	StartedAt  time.Time
	Duration   time.Duration
	Aborted    bool
	AbortCause string
	Videos     []VideoLine
	SenderName string
}

// Written counts lines whose state is WRITTEN
func (r *ReportEmailRequest) Written() int {
	n := 0
	for _, v := range r.Videos {
		if v.State == "WRITTEN" {
			n++
		}
	}
	return n
}

// Failed counts every line that was not written
func (r *ReportEmailRequest) Failed() int {
	return len(r.Videos) - r.Written()
}

// Validate checks that the email request has all required fields
func (r *ReportEmailRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range append(append([]Recipient{}, r.To...), r.CC...) {
		if to.Address == "" {
			return ErrInvalidRecipient
		}
	}
	if r.RunID == "" {
		return ErrNoRunID
	}
	if r.StartedAt.IsZero() {
		return ErrNoStartTime
	}
	return nil
}

// EmailSender defines the interface for sending emails
type EmailSender interface {
	Send(req *ReportEmailRequest) error
}

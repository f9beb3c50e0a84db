package notification

import (
	"context"
	"fmt"

	"video-transcriber/domain/notification"
	"video-transcriber/domain/pipeline"
)

// Service handles email notification operations
type Service struct {
	sender     notification.EmailSender
	to         []notification.Recipient
	cc         []notification.Recipient
	senderName string
}

// NewService creates a new notification service
func NewService(sender notification.EmailSender, to, cc []notification.Recipient, senderName string) *Service {
	if senderName == "" {
		senderName = "video-transcriber"
	}
	return &Service{
		sender:     sender,
		to:         to,
		cc:         cc,
		senderName: senderName,
	}
}

var _ pipeline.ReportNotifier = (*Service)(nil)

// NotifyReport emails a summary of a finished run
func (s *Service) NotifyReport(ctx context.Context, report *pipeline.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sender.Send(BuildRequest(report, s.to, s.cc, s.senderName))
}

// BuildRequest converts a run report into an email request
func BuildRequest(report *pipeline.Report, to, cc []notification.Recipient, senderName string) *notification.ReportEmailRequest {
	req := &notification.ReportEmailRequest{
		To:         to,
		CC:         cc,
		RunID:      report.RunID,
		Source:     fmt.Sprintf("%s/%s %s", report.Config.SourceKind, report.Config.Cardinality, report.Config.SourceID),
		StartedAt:  report.StartedAt,
		Duration:   report.Duration(),
		Aborted:    report.Aborted,
		SenderName: senderName,
	}
	if report.AbortErr != nil {
		req.AbortCause = report.AbortErr.Error()
	}
	for _, o := range report.Outcomes {
		req.Videos = append(req.Videos, notification.VideoLine{
			Name:   o.Reference.String(),
			State:  string(o.State),
			Output: o.OutputPath,
			Cause:  o.Cause(),
		})
	}
	return req
}

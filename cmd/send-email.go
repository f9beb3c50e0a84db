package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"video-transcriber/domain/notification"
	"video-transcriber/domain/pipeline"
	"video-transcriber/infrastructure/config"
	"video-transcriber/infrastructure/gmail"
	"video-transcriber/infrastructure/googleauth"
	"video-transcriber/infrastructure/ledger"

	"github.com/spf13/cobra"
)

var (
	emailRunID string
	emailTo    []string
)

var sendEmailCmd = &cobra.Command{
	Use:   "send-email",
	Short: "Email the report of a recorded run",
	Long: `Send the report of a run from the history database by email.

Recipients can be given by name (first, last, or full) or by config key.
Without --to the report goes to the configured default recipients.

Examples:
  video-transcriber send-email --run 0f8c2b9e-6d1a-4c35-9a57-1d2e3f4a5b6c
  video-transcriber send-email --run 0f8c2b9e-... --to jane --to john
  video-transcriber send-email --run 0f8c2b9e-... --to "jane,john"`,
	RunE: runSendEmail,
}

func init() {
	rootCmd.AddCommand(sendEmailCmd)
	sendEmailCmd.Flags().StringVar(&emailRunID, "run", "", "Run id from 'video-transcriber history' (required)")
	sendEmailCmd.Flags().StringArrayVar(&emailTo, "to", nil, "Recipient(s) by name or config key (can be repeated or comma-separated)")
	sendEmailCmd.MarkFlagRequired("run")
}

func runSendEmail(cmd *cobra.Command, args []string) error {
	c, err := requireConfig()
	if err != nil {
		return err
	}

	lookup := config.NewRecipientLookup(c)
	var recipients []notification.Recipient
	if len(emailTo) > 0 {
		recipients, err = lookup.LookupRecipients(splitRecipients(emailTo))
	} else {
		recipients, err = lookup.DefaultTo()
	}
	if err != nil {
		return fmt.Errorf("failed to lookup recipients: %w", err)
	}

	store, err := ledger.Open(c.History.Database)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	svc, err := gmail.NewGoogleGmailService(ctx, googleauth.Config{
		CredentialsFile: c.Google.CredentialsFile,
		TokenFile:       c.Notify.TokenFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gmail client: %w", err)
	}
	from := lookup.Sender()
	client := gmail.NewClient(from, gmail.WithGmailService(svc))

	return RunSendEmailWithDependencies(ctx, store, client, emailRunID, recipients, lookup.DefaultCC(), from.Name, os.Stdout)
}

// RunSendEmailWithDependencies runs the send-email command with injected dependencies (for testing)
func RunSendEmailWithDependencies(
	ctx context.Context,
	store *ledger.Store,
	sender notification.EmailSender,
	runID string,
	recipients []notification.Recipient,
	ccRecipients []notification.Recipient,
	senderName string,
	output io.Writer,
) error {
	req, err := requestFromHistory(ctx, store, runID)
	if err != nil {
		return err
	}
	req.To = recipients
	req.CC = ccRecipients
	req.SenderName = senderName

	toNames := make([]string, len(recipients))
	for i, r := range recipients {
		toNames[i] = fmt.Sprintf("%s <%s>", r.Name, r.Address)
	}
	fmt.Fprintf(output, "Sending report for run %s to: %s\n", runID, strings.Join(toNames, ", "))
	if len(ccRecipients) > 0 {
		ccNames := make([]string, len(ccRecipients))
		for i, r := range ccRecipients {
			ccNames[i] = fmt.Sprintf("%s <%s>", r.Name, r.Address)
		}
		fmt.Fprintf(output, "CC: %s\n", strings.Join(ccNames, ", "))
	}
	fmt.Fprintf(output, "%d written, %d failed\n", req.Written(), req.Failed())

	if err := sender.Send(req); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Fprintf(output, "Email sent successfully!\n")
	return nil
}

// requestFromHistory rebuilds a report email from a recorded run
func requestFromHistory(ctx context.Context, store *ledger.Store, runID string) (*notification.ReportEmailRequest, error) {
	run, cause, err := store.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	videos, err := store.Videos(ctx, runID)
	if err != nil {
		return nil, err
	}

	req := &notification.ReportEmailRequest{
		RunID:      run.RunID,
		Source:     fmt.Sprintf("%s %s", run.SourceKind, run.SourceID),
		StartedAt:  run.StartedAt,
		Duration:   run.FinishedAt.Sub(run.StartedAt),
		Aborted:    run.Aborted,
		AbortCause: cause,
	}
	for _, v := range videos {
		line := notification.VideoLine{
			Name:   v.Name,
			State:  string(v.State),
			Output: v.OutputPath,
		}
		if v.State == pipeline.StateFailed {
			line.Cause = v.Cause
		}
		req.Videos = append(req.Videos, line)
	}
	return req, nil
}

// splitRecipients accepts repeated and comma-separated --to values
func splitRecipients(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

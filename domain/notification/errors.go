package notification

import "errors"

var (
	// ErrNoRecipients is returned when no To recipients are provided
	ErrNoRecipients = errors.New("at least one recipient is required")

	// ErrInvalidRecipient is returned when a recipient has no email address
	ErrInvalidRecipient = errors.New("recipient must have an email address")

	// ErrNoRunID is returned when the report has no run id
	ErrNoRunID = errors.New("run id is required")

	// ErrNoStartTime is returned when the run start time is missing
	ErrNoStartTime = errors.New("run start time is required")

	// ErrSendFailed is returned when the email fails to send
	ErrSendFailed = errors.New("failed to send email")
)

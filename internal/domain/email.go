package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// MaxEmailAttempts is the number of delivery attempts after which a job is
// permanently failed.
const MaxEmailAttempts = 3

// EmailStatus represents the delivery state of a queued email.
type EmailStatus string

// Possible email job status values. Sending marks a job claimed by a drain.
const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSending EmailStatus = "sending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// IsValid reports whether s is a known email status.
func (s EmailStatus) IsValid() bool {
	switch s {
	case EmailStatusPending, EmailStatusSending, EmailStatusSent, EmailStatusFailed:
		return true
	default:
		return false
	}
}

// EmailJob is one queued email awaiting (or done with) delivery.
type EmailJob struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	ToEmail        string      `json:"toEmail" db:"to_email"`
	ToName         string      `json:"toName" db:"to_name"`
	Subject        string      `json:"subject" db:"subject"`
	HTMLBody       string      `json:"-" db:"html_body"`
	TextBody       string      `json:"-" db:"text_body"`
	Status         EmailStatus `json:"status" db:"status"`
	Attempts       int         `json:"attempts" db:"attempts"`
	LastError      string      `json:"lastError,omitempty" db:"last_error"`
	NotificationID *uuid.UUID  `json:"notificationId,omitempty" db:"notification_id"`
	ClaimToken     *uuid.UUID  `json:"-" db:"claim_token"`
	ClaimedAt      *time.Time  `json:"-" db:"claimed_at"`
	CreatedAt      time.Time   `json:"createdAt" db:"created_at"`
	SentAt         *time.Time  `json:"sentAt,omitempty" db:"sent_at"`
}

// NewEmailJob creates a pending job with zero attempts.
func NewEmailJob(
	toEmail, toName, subject, htmlBody, textBody string,
	notificationID *uuid.UUID,
) (*EmailJob, error) {
	job := &EmailJob{
		ID:             uuid.New(),
		ToEmail:        toEmail,
		ToName:         toName,
		Subject:        subject,
		HTMLBody:       htmlBody,
		TextBody:       textBody,
		Status:         EmailStatusPending,
		NotificationID: notificationID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks if the EmailJob has valid data.
func (j *EmailJob) Validate() error {
	if j.ID == uuid.Nil {
		return NewValidationError("id", "must not be empty")
	}
	if err := validate.Var(j.ToEmail, "required,email"); err != nil {
		return NewValidationError("toEmail", "invalid email address")
	}
	if j.Subject == "" {
		return NewValidationError("subject", "must not be empty")
	}
	if j.HTMLBody == "" && j.TextBody == "" {
		return NewValidationError("body", "html or text body required")
	}
	if !j.Status.IsValid() {
		return NewValidationError("status", "invalid email status")
	}
	if j.Attempts < 0 || j.Attempts > MaxEmailAttempts {
		return NewValidationError("attempts", "out of range")
	}
	return nil
}

// Retryable reports whether the job may still be picked up by a drain.
func (j *EmailJob) Retryable() bool {
	return j.Status == EmailStatusPending && j.Attempts < MaxEmailAttempts
}

// EmailLogEntry is an append-only audit record of one delivery attempt.
type EmailLogEntry struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	JobID     uuid.UUID   `json:"jobId" db:"job_id"`
	Recipient string      `json:"recipient" db:"recipient"`
	Subject   string      `json:"subject" db:"subject"`
	Status    EmailStatus `json:"status" db:"status"`
	Error     string      `json:"error,omitempty" db:"error"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
}

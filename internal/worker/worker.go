// Package worker drives one bulk campaign: it iterates recipients in input
// order, renders content, invokes the mail transport and publishes every
// state change through the registry, pacing itself to the campaign interval.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"SteadySend/internal/mail"
	"SteadySend/internal/metrics"
	"SteadySend/internal/models"
	"SteadySend/internal/registry"
	"SteadySend/internal/templates"
	"SteadySend/internal/validate"
)

// Campaign carries everything a dispatch run needs beyond live job state.
type Campaign struct {
	Recipients        []models.RecipientRecord
	SubjectTemplate   string
	HTMLTemplate      string
	Interval          time.Duration
	Attachments       []models.Attachment
	FromEmailTemplate string
	FromNameTemplate  string
}

// SenderIdentity is the job-level default From address and display name.
type SenderIdentity struct {
	Email string
	Name  string
}

// Worker dispatches one campaign. A fresh Worker runs on its own goroutine
// per job and is never reused.
type Worker struct {
	Log         *zap.Logger
	Client      mail.Sender
	Registry    *registry.Registry
	Default     SenderIdentity
	SendTimeout time.Duration
	MinPause    time.Duration // floor for the pacing sleep
}

const (
	defaultMinPause    = 10 * time.Millisecond
	defaultSendTimeout = 30 * time.Second
)

// Run drives the campaign to completion, early stop or fatal abort. It is the
// only writer of the job's mutable state.
func (w *Worker) Run(jobID string, c Campaign) {
	start := time.Now()
	log := w.Log.With(zap.String("job_id", jobID))
	total := len(c.Recipients)
	log.Info("campaign worker started", zap.Int("total", total))

	if w.Default.Email == "" || w.Default.Name == "" || w.Client == nil {
		const msg = "missing default sender or mail transport configuration"
		log.Error("campaign cannot start: " + msg)
		w.Registry.Mutate(jobID, func(j *models.Job) {
			j.FatalError = msg
			j.Running = false
		})
		return
	}

	metrics.CampaignsStarted.Inc()
	metrics.ActiveCampaigns.Inc()
	defer metrics.ActiveCampaigns.Dec()

	minPause := w.MinPause
	if minPause <= 0 {
		minPause = defaultMinPause
	}

	var successCount, failedCount, processedCount int
	missingVars := make(map[string]struct{})
	stopped := false

	for i, recipient := range c.Recipients {
		// Cooperative stop: honored only at this boundary, never mid-send.
		if !w.Registry.Running(jobID) {
			log.Info("stop requested, halting campaign", zap.Int("processed", processedCount))
			stopped = true
			break
		}

		processedCount = i + 1
		attemptStart := time.Now()
		email := strings.TrimSpace(recipient.Email)

		// Publish in-flight progress before attempting the send.
		pct := processedCount * 100 / total
		w.Registry.Mutate(jobID, func(j *models.Job) {
			j.Processed = processedCount
			j.CompletionPercentage = pct
			if validate.Email(email) {
				j.CurrentRecipient = email
			}
		})

		err := w.attempt(jobID, log, c, recipient, missingVars)
		if err != nil {
			failedCount++
			metrics.EmailsFailed.Inc()
			entry := models.FailedEntry{Email: email, Error: failureMessage(err)}
			if entry.Email == "" {
				entry.Email = fmt.Sprintf("Row %d", processedCount)
			}
			log.Warn("send failed",
				zap.Int("processed", processedCount),
				zap.Int("total", total),
				zap.String("recipient", entry.Email),
				zap.Error(err),
			)
			w.Registry.Mutate(jobID, func(j *models.Job) {
				j.Success = successCount
				j.Failed = failedCount
				j.FailedEntries = append(j.FailedEntries, entry)
			})
		} else {
			successCount++
			metrics.EmailsSent.Inc()
			log.Debug("send ok",
				zap.Int("processed", processedCount),
				zap.Int("total", total),
				zap.String("recipient", email),
			)
			w.Registry.Mutate(jobID, func(j *models.Job) {
				j.Success = successCount
				j.Failed = failedCount
			})
		}

		// Fixed-delay pacing: correct for this recipient's processing time
		// only. Cumulative drift across the job is not compensated.
		if i < total-1 {
			pause := c.Interval - time.Since(attemptStart)
			if pause < minPause {
				pause = minPause
			}
			time.Sleep(pause)
		}
	}

	duration := time.Since(start)
	end := time.Now()
	log.Info("campaign worker finished",
		zap.Int("processed", processedCount),
		zap.Int("success", successCount),
		zap.Int("failed", failedCount),
		zap.Bool("stopped", stopped),
		zap.Duration("duration", duration),
	)

	w.Registry.Mutate(jobID, func(j *models.Job) {
		j.Running = false
		j.EndTime = &end
		j.Duration = math.Round(duration.Seconds()*100) / 100
		j.CurrentRecipient = models.RecipientCompleted
		j.Processed = processedCount
		j.Success = successCount
		j.Failed = failedCount
		if !stopped {
			j.CompletionPercentage = 100
		}
	})
}

// attempt validates, renders and sends for a single recipient.
func (w *Worker) attempt(jobID string, log *zap.Logger, c Campaign, recipient models.RecipientRecord, missingVars map[string]struct{}) error {
	if err := validate.Recipient(recipient); err != nil {
		return err
	}
	email := strings.TrimSpace(recipient.Email)

	data := recipient.Context()
	subject := templates.Render(c.SubjectTemplate, data)
	htmlBody := templates.Render(c.HTMLTemplate, data)

	if strings.Contains(subject+htmlBody, "{{") {
		w.reportMissingVars(log, c, data, missingVars, email)
	}

	toName, _ := templates.Lookup(data, "Name")
	if toName == "" {
		toName, _ = templates.Lookup(data, "First_Name")
	}
	fromEmail, fromName := w.resolveSender(log, c, data, email)

	msg := &mail.Message{
		FromEmail:   fromEmail,
		FromName:    fromName,
		ToEmail:     email,
		ToName:      strings.TrimSpace(toName),
		Subject:     subject,
		HTMLBody:    htmlBody,
		Attachments: c.Attachments,
	}

	timeout := w.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := w.Client.Send(ctx, msg)
	return err
}

// resolveSender renders the optional per-recipient sender templates. The
// rendered From address is used only when fully resolved and syntactically
// valid; otherwise the job-level default applies. The display name follows
// the same rule independently.
func (w *Worker) resolveSender(log *zap.Logger, c Campaign, data map[string]string, recipient string) (string, string) {
	fromEmail, fromName := w.Default.Email, w.Default.Name

	if c.FromEmailTemplate != "" {
		rendered := strings.TrimSpace(templates.Render(c.FromEmailTemplate, data))
		if validate.Email(rendered) && !strings.Contains(rendered, "{{") {
			fromEmail = rendered
		} else {
			log.Debug("sender email template unresolved, using default",
				zap.String("recipient", recipient),
				zap.String("rendered", rendered),
			)
		}
	}

	if c.FromNameTemplate != "" {
		rendered := strings.TrimSpace(templates.Render(c.FromNameTemplate, data))
		if rendered != "" && !strings.Contains(rendered, "{{") {
			fromName = rendered
		}
	}

	return fromEmail, fromName
}

// reportMissingVars logs each template variable absent from the recipient
// context at most once per job.
func (w *Worker) reportMissingVars(log *zap.Logger, c Campaign, data map[string]string, seen map[string]struct{}, recipient string) {
	available := make(map[string]struct{}, len(data))
	for k := range data {
		available[templates.Key(k)] = struct{}{}
	}
	for _, name := range templates.Placeholders(c.SubjectTemplate + c.HTMLTemplate) {
		key := templates.Key(name)
		if _, ok := available[key]; ok {
			continue
		}
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}
		log.Warn("template variable missing from recipient data",
			zap.String("variable", name),
			zap.String("key", key),
			zap.String("recipient", recipient),
		)
	}
}

// failureMessage maps a per-recipient error to the recorded entry text.
// Unexpected faults surface a generic message; detail stays in the logs.
func failureMessage(err error) string {
	var valErr *validate.Error
	var apiErr *mail.APIError
	var netErr *mail.NetworkError
	switch {
	case errors.As(err, &valErr):
		return "Data validation error: " + valErr.Reason
	case errors.As(err, &apiErr):
		return apiErr.Error()
	case errors.As(err, &netErr):
		return "Network error"
	default:
		return "Internal processing error"
	}
}

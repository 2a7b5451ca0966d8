// Package campaign exposes the dispatch engine's operations: create a job,
// read its status, request a stop.
package campaign

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SteadySend/internal/mail"
	"SteadySend/internal/models"
	"SteadySend/internal/registry"
	"SteadySend/internal/worker"
)

// Campaign limits, matching the provider-side pacing constraints.
const (
	MaxRecipients   = 1000
	DefaultInterval = 4
	MinInterval     = 1
	MaxInterval     = 20
)

// ErrTooManyRecipients is returned when a submission exceeds the recipient cap.
var ErrTooManyRecipients = errors.New("recipient limit exceeded")

// Request describes one bulk campaign submission.
type Request struct {
	Recipients        []models.RecipientRecord
	SubjectTemplate   string
	HTMLTemplate      string
	IntervalSeconds   int
	Attachments       []models.Attachment
	FromEmailTemplate string
	FromNameTemplate  string
}

// Service owns the job registry and spawns one dispatch worker per campaign.
// Job creation returns immediately after the worker is started.
type Service struct {
	log           *zap.Logger
	registry      *registry.Registry
	client        mail.Sender
	sender        worker.SenderIdentity
	sendTimeout   time.Duration
	maxRecipients int
}

func NewService(log *zap.Logger, reg *registry.Registry, client mail.Sender, sender worker.SenderIdentity, sendTimeout time.Duration, maxRecipients int) *Service {
	if maxRecipients <= 0 {
		maxRecipients = MaxRecipients
	}
	return &Service{
		log:           log,
		registry:      reg,
		client:        client,
		sender:        sender,
		sendTimeout:   sendTimeout,
		maxRecipients: maxRecipients,
	}
}

// CreateJob validates the request, allocates a job and starts its worker.
// Validation failures leave the registry untouched.
func (s *Service) CreateJob(req Request) (string, error) {
	count := len(req.Recipients)
	if count == 0 {
		return "", errors.New("recipient list is empty")
	}
	if count > s.maxRecipients {
		return "", fmt.Errorf("%w: %d recipients (limit %d)", ErrTooManyRecipients, count, s.maxRecipients)
	}
	if req.SubjectTemplate == "" || req.HTMLTemplate == "" {
		return "", errors.New("subject and content templates are required")
	}

	interval := req.IntervalSeconds
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval || interval > MaxInterval {
		return "", fmt.Errorf("interval must be between %d and %d seconds", MinInterval, MaxInterval)
	}

	jobID := s.registry.Create(count)
	w := &worker.Worker{
		Log:         s.log,
		Client:      s.client,
		Registry:    s.registry,
		Default:     s.sender,
		SendTimeout: s.sendTimeout,
	}
	go w.Run(jobID, worker.Campaign{
		Recipients:        req.Recipients,
		SubjectTemplate:   req.SubjectTemplate,
		HTMLTemplate:      req.HTMLTemplate,
		Interval:          time.Duration(interval) * time.Second,
		Attachments:       req.Attachments,
		FromEmailTemplate: req.FromEmailTemplate,
		FromNameTemplate:  req.FromNameTemplate,
	})

	s.log.Info("bulk campaign initiated",
		zap.String("job_id", jobID),
		zap.Int("total", count),
		zap.Int("interval_seconds", interval),
		zap.Int("estimated_seconds", count*interval),
	)
	return jobID, nil
}

// Status returns a snapshot of the job's current state.
func (s *Service) Status(jobID string) (models.Job, bool) {
	return s.registry.Snapshot(jobID)
}

// Stop requests a cooperative stop. Returns false for unknown jobs.
func (s *Service) Stop(jobID string) bool {
	return s.registry.RequestStop(jobID)
}

// MaxRecipientCount is the configured per-campaign recipient cap.
func (s *Service) MaxRecipientCount() int {
	return s.maxRecipients
}

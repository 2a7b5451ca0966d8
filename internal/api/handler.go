// Package api exposes the campaign engine over HTTP: ad-hoc single sends,
// recipient file uploads, bulk campaign creation, status polling and stop.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"SteadySend/internal/campaign"
	"SteadySend/internal/ingest"
	"SteadySend/internal/mail"
	"SteadySend/internal/models"
	"SteadySend/internal/validate"
	"SteadySend/internal/worker"
)

const maxUploadBytes = 32 << 20

type Handler struct {
	Log       *zap.Logger
	Campaigns *campaign.Service
	Client    mail.Sender
	Limiter   *rate.Limiter
	Defaults  worker.SenderIdentity
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SendEmail handles a single ad-hoc send from a multipart form.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if h.Client == nil || h.Defaults.Email == "" {
		h.Log.Error("single send rejected: server missing sender configuration")
		respondJSON(w, http.StatusInternalServerError, errorBody("Server configuration error."))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid form data."))
		return
	}

	toEmail := strings.TrimSpace(r.FormValue("to_email"))
	subject := strings.TrimSpace(r.FormValue("subject"))
	htmlContent := strings.TrimSpace(r.FormValue("html_content"))
	if toEmail == "" || subject == "" || htmlContent == "" {
		respondJSON(w, http.StatusBadRequest, errorBody("Missing required fields (To, Subject, Content)."))
		return
	}
	if !validate.Email(toEmail) {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid 'To Email' format: "+toEmail))
		return
	}

	fromEmail := strings.TrimSpace(r.FormValue("from_email"))
	fromName := strings.TrimSpace(r.FormValue("from_name"))
	if fromEmail == "" {
		fromEmail = h.Defaults.Email
	}
	if fromEmail != h.Defaults.Email && !validate.Email(fromEmail) {
		h.Log.Warn("invalid From email, using default", zap.String("from_email", fromEmail))
		fromEmail = h.Defaults.Email
		fromName = h.Defaults.Name
	}
	if fromName == "" {
		fromName = h.Defaults.Name
	}

	msg := &mail.Message{
		FromEmail:   fromEmail,
		FromName:    fromName,
		ToEmail:     toEmail,
		ToName:      strings.TrimSpace(r.FormValue("to_name")),
		CC:          splitValidEmails(r.FormValue("cc")),
		BCC:         splitValidEmails(r.FormValue("bcc")),
		Subject:     subject,
		HTMLBody:    htmlContent,
		Attachments: h.readAttachments(r, "attachments"),
	}

	if h.Limiter != nil {
		if err := h.Limiter.Wait(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, errorBody("Request cancelled."))
			return
		}
	}

	res, err := h.Client.Send(r.Context(), msg)
	if err != nil {
		var apiErr *mail.APIError
		var netErr *mail.NetworkError
		switch {
		case errors.As(err, &apiErr):
			h.Log.Warn("single send rejected by provider", zap.String("to", toEmail), zap.Error(err))
			respondJSON(w, apiErr.StatusCode, map[string]any{
				"success":     false,
				"status_code": apiErr.StatusCode,
				"error":       apiErr.Error(),
			})
		case errors.As(err, &netErr):
			h.Log.Error("single send network error", zap.String("to", toEmail), zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, errorBody("Network error sending email."))
		default:
			h.Log.Error("single send unexpected error", zap.String("to", toEmail), zap.Error(err))
			respondJSON(w, http.StatusInternalServerError, errorBody("Internal server error."))
		}
		return
	}

	h.Log.Info("single email sent", zap.String("to", toEmail))
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Email sent successfully.",
		"response": res.ProviderMessage,
	})
}

// UploadRecipients parses an uploaded recipient file into validated records.
func (h *Handler) UploadRecipients(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid form data."))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("No file selected."))
		return
	}
	defer file.Close()

	result, err := ingest.Parse(header.Filename, file, h.Campaigns.MaxRecipientCount())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ingest.ErrTooManyRecipients) {
			status = http.StatusRequestEntityTooLarge
		}
		h.Log.Warn("recipient upload rejected", zap.String("file", header.Filename), zap.Error(err))
		respondJSON(w, status, errorBody(err.Error()))
		return
	}

	if result.Skipped > 0 {
		h.Log.Warn("skipped invalid email addresses in upload",
			zap.String("file", header.Filename),
			zap.Int("skipped", result.Skipped),
		)
	}
	h.Log.Info("recipient file processed",
		zap.String("file", header.Filename),
		zap.Int("count", result.Count),
	)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      result.Count,
		"recipients": result.Recipients,
		"columns":    result.Columns,
		"file_type":  result.FileType,
	})
}

// SendBulk creates a campaign job and returns its id immediately.
func (h *Handler) SendBulk(w http.ResponseWriter, r *http.Request) {
	if h.Client == nil || h.Defaults.Email == "" {
		respondJSON(w, http.StatusInternalServerError, errorBody("Server configuration error."))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid form data."))
		return
	}

	recipientsStr := r.FormValue("recipients")
	subjectTmpl := r.FormValue("subject")
	htmlTmpl := r.FormValue("html_content")
	if recipientsStr == "" || subjectTmpl == "" || htmlTmpl == "" {
		respondJSON(w, http.StatusBadRequest, errorBody("Missing required fields (recipients, subject, html_content)."))
		return
	}

	var recipients []models.RecipientRecord
	if err := json.Unmarshal([]byte(recipientsStr), &recipients); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("Invalid recipients data: "+err.Error()))
		return
	}

	interval := campaign.DefaultInterval
	if v := strings.TrimSpace(r.FormValue("interval")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorBody("Invalid interval value: "+v))
			return
		}
		interval = parsed
	}

	jobID, err := h.Campaigns.CreateJob(campaign.Request{
		Recipients:        recipients,
		SubjectTemplate:   subjectTmpl,
		HTMLTemplate:      htmlTmpl,
		IntervalSeconds:   interval,
		Attachments:       h.readAttachments(r, "attachments"),
		FromEmailTemplate: strings.TrimSpace(r.FormValue("from_email_template")),
		FromNameTemplate:  strings.TrimSpace(r.FormValue("from_name_template")),
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, campaign.ErrTooManyRecipients) {
			status = http.StatusRequestEntityTooLarge
		}
		h.Log.Warn("bulk campaign rejected", zap.Error(err))
		respondJSON(w, status, errorBody(err.Error()))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Bulk campaign initiated (" + strconv.Itoa(len(recipients)) + " emails).",
		"job_id":  jobID,
		"details": map[string]any{
			"total_emails":              len(recipients),
			"interval":                  strconv.Itoa(interval) + "s",
			"estimated_completion_secs": len(recipients) * interval,
		},
	})
}

// BulkStatus returns a snapshot of a campaign job.
func (h *Handler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.Campaigns.Status(jobID)
	if !ok {
		respondJSON(w, http.StatusNotFound, errorBody("Job not found or expired."))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "status": job})
}

// StopBulk requests a cooperative stop of a running campaign.
func (h *Handler) StopBulk(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !h.Campaigns.Stop(jobID) {
		respondJSON(w, http.StatusNotFound, errorBody("Job not found or expired."))
		return
	}
	h.Log.Info("stop requested", zap.String("job_id", jobID))
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Stop requested."})
}

// readAttachments builds provider attachment payloads from multipart uploads.
// Empty or unreadable files are skipped.
func (h *Handler) readAttachments(r *http.Request, field string) []models.Attachment {
	if r.MultipartForm == nil {
		return nil
	}
	var attachments []models.Attachment
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			h.Log.Error("opening attachment", zap.String("file", fh.Filename), zap.Error(err))
			continue
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.Log.Error("reading attachment", zap.String("file", fh.Filename), zap.Error(err))
			continue
		}
		if len(content) == 0 {
			h.Log.Warn("skipping empty attachment", zap.String("file", fh.Filename))
			continue
		}
		attachments = append(attachments, mail.NewAttachment(fh.Filename, fh.Header.Get("Content-Type"), content))
	}
	return attachments
}

func splitValidEmails(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" && validate.Email(part) {
			out = append(out, part)
		}
	}
	return out
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

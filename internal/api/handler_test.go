package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"SteadySend/internal/campaign"
	"SteadySend/internal/mail"
	"SteadySend/internal/registry"
	"SteadySend/internal/worker"
)

type stubSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg *mail.Message) (*mail.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, *msg)
	return &mail.Result{ProviderMessage: "queued"}, nil
}

func newTestHandler(sender mail.Sender) *Handler {
	log := zap.NewNop()
	defaults := worker.SenderIdentity{Email: "noreply@steadysend.io", Name: "SteadySend"}
	reg := registry.New(log)
	return &Handler{
		Log:       log,
		Campaigns: campaign.NewService(log, reg, sender, defaults, time.Second, 100),
		Client:    sender,
		Limiter:   rate.NewLimiter(rate.Inf, 0),
		Defaults:  defaults,
	}
}

func postForm(t *testing.T, h http.Handler, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	wr := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, wr.WriteField(k, v))
	}
	require.NoError(t, wr.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", wr.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&stubSender{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendEmail(t *testing.T) {
	sender := &stubSender{}
	h := newTestHandler(sender)
	router := h.Routes()

	rec := postForm(t, router, "/api/send-email", map[string]string{
		"to_email":     "ana@example.com",
		"to_name":      "Ana",
		"subject":      "Hello",
		"html_content": "<p>Hi</p>",
		"cc":           "boss@example.com, not-an-email",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ana@example.com", msg.ToEmail)
	assert.Equal(t, "noreply@steadysend.io", msg.FromEmail)
	assert.Equal(t, []string{"boss@example.com"}, msg.CC)
}

func TestSendEmailValidation(t *testing.T) {
	h := newTestHandler(&stubSender{})
	router := h.Routes()

	rec := postForm(t, router, "/api/send-email", map[string]string{
		"to_email": "ana@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(t, router, "/api/send-email", map[string]string{
		"to_email":     "not-an-email",
		"subject":      "Hello",
		"html_content": "<p>Hi</p>",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmailWithoutConfiguredClient(t *testing.T) {
	h := newTestHandler(&stubSender{})
	h.Client = nil
	router := h.Routes()

	rec := postForm(t, router, "/api/send-email", map[string]string{
		"to_email":     "ana@example.com",
		"subject":      "Hello",
		"html_content": "<p>Hi</p>",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSendEmailMapsProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "http error propagates upstream status",
			err:        &mail.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "network error maps to 503",
			err:        &mail.NetworkError{Err: errors.New("dial tcp")},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected error maps to 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubSender{err: tt.err})
			rec := postForm(t, h.Routes(), "/api/send-email", map[string]string{
				"to_email":     "ana@example.com",
				"subject":      "Hello",
				"html_content": "<p>Hi</p>",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestUploadRecipients(t *testing.T) {
	h := newTestHandler(&stubSender{})
	router := h.Routes()

	var buf bytes.Buffer
	wr := multipart.NewWriter(&buf)
	fw, err := wr.CreateFormFile("file", "list.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Email,First Name\nana@example.com,Ana\nbad-email,Bo\n"))
	require.NoError(t, err)
	require.NoError(t, wr.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-recipients", &buf)
	req.Header.Set("Content-Type", wr.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "csv", body["file_type"])
}

func TestUploadRecipientsWithoutFile(t *testing.T) {
	h := newTestHandler(&stubSender{})
	rec := postForm(t, h.Routes(), "/api/upload-recipients", map[string]string{"unused": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendBulkLifecycle(t *testing.T) {
	sender := &stubSender{}
	h := newTestHandler(sender)
	router := h.Routes()

	rec := postForm(t, router, "/api/send-bulk", map[string]string{
		"recipients":   `[{"Email":"ana@example.com","Name":"Ana"}]`,
		"subject":      "Hi {{Name}}",
		"html_content": "<p>Hello {{Name}}</p>",
		"interval":     "1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/bulk-status/"+jobID, nil)
		statusRec := httptest.NewRecorder()
		router.ServeHTTP(statusRec, req)
		if statusRec.Code != http.StatusOK {
			return false
		}
		status := decodeBody(t, statusRec)["status"].(map[string]any)
		return status["in_progress"] == false
	}, 10*time.Second, 50*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/bulk-status/"+jobID, nil)
	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, req)
	status := decodeBody(t, statusRec)["status"].(map[string]any)
	assert.EqualValues(t, 1, status["total"])
	assert.EqualValues(t, 1, status["success"])
	assert.EqualValues(t, 100, status["completion_percentage"])

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Hi Ana", sender.sent[0].Subject)
}

func TestSendBulkValidation(t *testing.T) {
	h := newTestHandler(&stubSender{})
	router := h.Routes()

	// Missing fields.
	rec := postForm(t, router, "/api/send-bulk", map[string]string{
		"recipients": `[{"Email":"ana@example.com"}]`,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed recipients payload.
	rec = postForm(t, router, "/api/send-bulk", map[string]string{
		"recipients":   `not json`,
		"subject":      "S",
		"html_content": "B",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Interval out of range.
	rec = postForm(t, router, "/api/send-bulk", map[string]string{
		"recipients":   `[{"Email":"ana@example.com"}]`,
		"subject":      "S",
		"html_content": "B",
		"interval":     "99",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendBulkRecipientLimit(t *testing.T) {
	h := newTestHandler(&stubSender{})
	router := h.Routes()

	recipients := `[`
	for i := 0; i < 101; i++ {
		if i > 0 {
			recipients += ","
		}
		recipients += `{"Email":"user@example.com"}`
	}
	recipients += `]`

	rec := postForm(t, router, "/api/send-bulk", map[string]string{
		"recipients":   recipients,
		"subject":      "S",
		"html_content": "B",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBulkStatusNotFound(t *testing.T) {
	h := newTestHandler(&stubSender{})
	req := httptest.NewRequest(http.MethodGet, "/api/bulk-status/bulk-nope", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopBulkNotFound(t *testing.T) {
	h := newTestHandler(&stubSender{})
	req := httptest.NewRequest(http.MethodPost, "/api/bulk-stop/bulk-nope", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

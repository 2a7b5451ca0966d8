// Package mail provides the outbound email transports: the SMTP2GO-style
// HTTP API client used by default, and a plain SMTP relay alternative.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"SteadySend/internal/models"
)

// Message is one outbound email.
type Message struct {
	FromEmail   string
	FromName    string
	ToEmail     string
	ToName      string
	CC          []string
	BCC         []string
	Subject     string
	HTMLBody    string
	Attachments []models.Attachment
}

// Result reports a successful delivery handoff.
type Result struct {
	ProviderMessage string
}

// Sender sends one email. Implementations classify failures as *APIError or
// *NetworkError; anything else is treated as an internal fault by callers.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// APIClient sends through the provider's JSON HTTP endpoint.
type APIClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *zap.Logger
}

// NewAPIClient validates the mandatory API settings and builds a client.
func NewAPIClient(apiURL, apiKey string, timeout time.Duration, log *zap.Logger) (*APIClient, error) {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		return nil, errors.New("mail: API URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("mail: API key is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		endpoint: apiURL + "/email/send",
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}, nil
}

type sendPayload struct {
	APIKey      string              `json:"api_key"`
	To          []string            `json:"to"`
	Sender      string              `json:"sender"`
	Subject     string              `json:"subject"`
	HTMLBody    string              `json:"html_body"`
	CC          []string            `json:"cc,omitempty"`
	BCC         []string            `json:"bcc,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// Send posts the message to the API and classifies the outcome. Non-2xx
// responses come back as *APIError, transport failures as *NetworkError.
func (c *APIClient) Send(ctx context.Context, msg *Message) (*Result, error) {
	payload := sendPayload{
		APIKey:      c.apiKey,
		To:          []string{addressValue(msg.ToName, msg.ToEmail)},
		Sender:      addressValue(msg.FromName, msg.FromEmail),
		Subject:     msg.Subject,
		HTMLBody:    msg.HTMLBody,
		CC:          msg.CC,
		BCC:         msg.BCC,
		Attachments: msg.Attachments,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mail: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("mail: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.log.Warn("email API rejected send",
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	providerMsg := "OK"
	var parsed map[string]any
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		if s, _ := parsed["message"].(string); s != "" {
			providerMsg = s
		}
	}
	return &Result{ProviderMessage: providerMsg}, nil
}

// addressValue formats "Name <email>" when a display name is present.
func addressValue(name, email string) string {
	if name != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return email
}

// NewAttachment base64-encodes content into the provider wire format.
func NewAttachment(filename, mimetype string, content []byte) models.Attachment {
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}
	return models.Attachment{
		Filename: filename,
		Fileblob: base64.StdEncoding.EncodeToString(content),
		Mimetype: mimetype,
	}
}

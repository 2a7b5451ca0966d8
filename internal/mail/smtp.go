package mail

import (
	"context"
	"encoding/base64"
	"io"

	"gopkg.in/gomail.v2"
)

// SMTPClient delivers through a plain SMTP relay instead of the HTTP API.
// Useful against a local relay or when no API key is provisioned.
type SMTPClient struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Send delivers one message over SMTP. gomail has no context support, so the
// deadline is bounded by the dialer's own timeouts; failures are reported as
// *NetworkError since there is no structured response to classify.
func (c *SMTPClient) Send(_ context.Context, msg *Message) (*Result, error) {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetAddressHeader("To", msg.ToEmail, msg.ToName)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", msg.CC...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", msg.BCC...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	for _, a := range msg.Attachments {
		blob := a.Fileblob
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			raw, err := base64.StdEncoding.DecodeString(blob)
			if err != nil {
				return err
			}
			_, err = w.Write(raw)
			return err
		}))
	}

	d := gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	if err := d.DialAndSend(m); err != nil {
		return nil, &NetworkError{Err: err}
	}
	return &Result{ProviderMessage: "OK"}, nil
}

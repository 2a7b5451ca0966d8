package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Email API (SMTP2GO)
	// ----------------------------
	APIURL             string `envconfig:"SMTP2GO_API_URL" default:""`
	APIKey             string `envconfig:"SMTP2GO_API_KEY" default:""`
	DefaultSenderEmail string `envconfig:"DEFAULT_SENDER_EMAIL" default:""`
	DefaultSenderName  string `envconfig:"DEFAULT_SENDER_NAME" default:""`

	// ----------------------------
	// Transport selection
	// ----------------------------
	MailProvider string `envconfig:"MAIL_PROVIDER" default:"api"` // api or smtp
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`

	// ----------------------------
	// Dispatch
	// ----------------------------
	SendTimeout   time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`
	MaxRecipients int           `envconfig:"MAX_RECIPIENTS" default:"1000"`

	// ----------------------------
	// Single-send throttle
	// ----------------------------
	SingleSendRate  float64 `envconfig:"SINGLE_SEND_RATE" default:"1"`
	SingleSendBurst int     `envconfig:"SINGLE_SEND_BURST" default:"3"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}

// MissingSenderConfig lists the mandatory API-sending settings that are
// absent. The server still starts without them; campaigns then abort with a
// fatal configuration error.
func (c *Config) MissingSenderConfig() []string {
	var missing []string
	if c.MailProvider == "api" {
		if c.APIURL == "" {
			missing = append(missing, "SMTP2GO_API_URL")
		}
		if c.APIKey == "" {
			missing = append(missing, "SMTP2GO_API_KEY")
		}
	}
	if c.DefaultSenderEmail == "" {
		missing = append(missing, "DEFAULT_SENDER_EMAIL")
	}
	if c.DefaultSenderName == "" {
		missing = append(missing, "DEFAULT_SENDER_NAME")
	}
	return missing
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails accepted by the provider",
		},
	)

	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_failed_total",
			Help: "Total per-recipient send failures",
		},
	)

	CampaignsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_started_total",
			Help: "Total bulk campaigns started",
		},
	)

	ActiveCampaigns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaigns_active",
			Help: "Campaigns currently dispatching",
		},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent, EmailsFailed, CampaignsStarted, ActiveCampaigns)
}

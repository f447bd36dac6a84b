package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "newsletter_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsletter_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CampaignDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "newsletter_campaign_dispatches_total", Help: "Campaign dispatch attempts by outcome"},
		[]string{"outcome"},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_campaign_dispatch_duration_seconds",
			Help:    "Wall time of a full campaign dispatch",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
	BatchesSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "newsletter_batches_sent_total", Help: "Recipient batches handed to the transport"},
	)
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "newsletter_emails_sent_total", Help: "Emails accepted by the transport"},
	)
	EmailsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "newsletter_emails_failed_total", Help: "Emails rejected by the transport"},
	)

	SchedulerPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "newsletter_scheduler_passes_total", Help: "Scheduler passes by outcome"},
		[]string{"outcome"},
	)
	DueCampaigns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "newsletter_due_campaigns_total", Help: "Due campaigns picked up by the scheduler"},
	)

	Subscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "newsletter_subscriptions_total", Help: "Subscribe and unsubscribe events"},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		CampaignDispatches, DispatchDuration, BatchesSent, EmailsSent, EmailsFailed,
		SchedulerPasses, DueCampaigns, Subscriptions,
	)
}

func Handler() http.Handler { return promhttp.Handler() }

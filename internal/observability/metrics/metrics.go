// Package metrics registers the process's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotifierDeliveries counts webhook notifications successfully posted.
	NotifierDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "elrep_notifier_deliveries_total",
		Help: "Activity notifications delivered to the webhook endpoint.",
	})

	// NotifierErrors counts failed delivery attempts by reason.
	NotifierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elrep_notifier_errors_total",
		Help: "Failed notification delivery attempts.",
	}, []string{"reason"})

	// HTTPRequests counts handled requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elrep_http_requests_total",
		Help: "HTTP requests handled.",
	}, []string{"method", "route", "status"})
)

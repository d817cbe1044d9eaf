package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_exports_total",
			Help: "Order exports by outcome",
		},
		[]string{"status"}, // queued|success|failed|retried
	)

	ExportRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderdesk_export_rows_total",
			Help: "Rows written to successful order exports",
		},
	)

	ExportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderdesk_export_duration_seconds",
			Help:    "Wall time of one export attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	WhatsAppMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderdesk_whatsapp_messages_total",
			Help: "WhatsApp template sends by result",
		},
		[]string{"result"}, // sent|invalid|api_error|error|skipped
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		ExportsTotal,
		ExportRowsTotal,
		ExportDuration,
		WhatsAppMessagesTotal,
	)
}

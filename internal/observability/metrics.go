package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the distributor.
type Metrics struct {
	// --- Distribution ---
	PagesProcessed   *prometheus.CounterVec
	PageDuration     prometheus.Histogram
	Claims           *prometheus.CounterVec
	QuoteDistributed prometheus.Counter
	QuoteWithheld    prometheus.Counter
	QuoteRemainder   prometheus.Counter
	PayoutLines      *prometheus.CounterVec
	CapHits          prometheus.Counter
	PageCursor       prometheus.Gauge
	DaysClosed       prometheus.Counter
	LastClosedDay    prometheus.Gauge

	// --- Treasury ---
	TreasuryBalance  prometheus.Gauge
	JournalsApplied  *prometheus.CounterVec
	TransferFailures prometheus.Counter

	// --- Accrual ingestion ---
	AccrualsReceived *prometheus.CounterVec
	AccruedQuote     prometheus.Counter

	// --- Channels & publishing ---
	ChannelSize        *prometheus.GaugeVec
	ChannelCapacity    *prometheus.GaugeVec
	ChannelUtilization *prometheus.GaugeVec
	PublishDrops       prometheus.Counter
	PublishErrors      prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	ProjectionUpdateDur    prometheus.Histogram

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	pageBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	dbBuckets := []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

	return &Metrics{
		// Distribution
		PagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_pages_processed_total",
			Help: "Page calls by outcome (applied, duplicate, or error kind)",
		}, []string{"outcome"}),

		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fee_dist_page_duration_seconds",
			Help:    "End-to-end page call duration",
			Buckets: pageBuckets,
		}),

		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_claims_total",
			Help: "First-of-day revenue claims by outcome",
		}, []string{"outcome"}),

		QuoteDistributed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_quote_distributed_total",
			Help: "Quote paid to participants",
		}),

		QuoteWithheld: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_quote_withheld_total",
			Help: "Quote withheld as dust below min payout",
		}),

		QuoteRemainder: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_quote_remainder_total",
			Help: "Quote routed to the recipient at day close",
		}),

		PayoutLines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_payout_lines_total",
			Help: "Participant payout lines by status",
		}, []string{"status"}),

		CapHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_daily_cap_hits_total",
			Help: "Pages whose quote was reduced by the daily cap",
		}),

		PageCursor: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fee_dist_page_cursor",
			Help: "Pagination cursor of the last applied page",
		}),

		DaysClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_days_closed_total",
			Help: "Days closed by a final page",
		}),

		LastClosedDay: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fee_dist_last_closed_day",
			Help: "Day key of the most recently closed day",
		}),

		// Treasury
		TreasuryBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fee_dist_treasury_balance",
			Help: "Current treasury balance in quote units",
		}),

		JournalsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_journals_applied_total",
			Help: "Ledger journal entries applied",
		}, []string{"journal_type"}),

		TransferFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_transfer_failures_total",
			Help: "Transfer batches rejected by the treasury",
		}),

		// Accrual ingestion
		AccrualsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_accruals_received_total",
			Help: "Fee accrual messages by outcome",
		}, []string{"outcome"}),

		AccruedQuote: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_accrued_quote_total",
			Help: "Quote recorded into the accrual pool",
		}),

		// Channels & publishing
		ChannelSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fee_dist_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fee_dist_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fee_dist_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_publish_errors_total",
			Help: "Outbound NATS publish failures",
		}),

		// Persistence
		PersistEventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_persist_events_written_total",
			Help: "Distribution events written to Postgres",
		}),

		PersistJournalsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "fee_dist_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fee_dist_persist_batch_size",
			Help:    "Records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fee_dist_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: dbBuckets,
		}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		ProjectionUpdateDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fee_dist_projection_update_duration_seconds",
			Help:    "Account totals projection update duration",
			Buckets: dbBuckets,
		}),

		// Query API
		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fee_dist_query_requests_total",
			Help: "Query and crank requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fee_dist_query_duration_seconds",
			Help:    "Request latency",
			Buckets: dbBuckets,
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}

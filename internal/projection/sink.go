package projection

import (
	"FeeDistributor/internal/ledger"
	"FeeDistributor/internal/observability"
	"context"
)

// Sink wraps the durable journal sink and feeds every stored batch to the
// projection worker. The feed never blocks the ledger.
type Sink struct {
	next    ledger.JournalSink
	feed    chan<- *ledger.Batch
	metrics *observability.Metrics
}

var _ ledger.JournalSink = (*Sink)(nil)

func NewSink(next ledger.JournalSink, feed chan<- *ledger.Batch, metrics *observability.Metrics) *Sink {
	return &Sink{next: next, feed: feed, metrics: metrics}
}

// AppendBatch implements ledger.JournalSink.
func (s *Sink) AppendBatch(ctx context.Context, b *ledger.Batch) error {
	if err := s.next.AppendBatch(ctx, b); err != nil {
		return err
	}

	select {
	case s.feed <- b:
	default:
		if s.metrics != nil {
			s.metrics.PublishDrops.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.SetChannelMetrics("projection", len(s.feed), cap(s.feed))
	}
	return nil
}

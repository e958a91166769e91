package delivery

import (
	"context"
	"log/slog"
	"time"

	"civium.app/pipeline/common/logger"
	"civium.app/pipeline/internal/model"
	"civium.app/pipeline/internal/notify"
	"civium.app/pipeline/internal/store"
)

// maxReasonLen bounds what one failed send may write into last_error.
const maxReasonLen = 500

// Summary aggregates one drain pass.
type Summary struct {
	Sent        int `json:"sent"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Rescheduled int `json:"rescheduled"`
}

// Processor claims due delivery items and pushes them through the sender.
type Processor struct {
	deliveries store.DeliveryStore
	sender     notify.Sender
	batchSize  int
	logger     *slog.Logger
	now        func() time.Time
}

func NewProcessor(deliveries store.DeliveryStore, sender notify.Sender, batchSize int, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		deliveries: deliveries,
		sender:     sender,
		batchSize:  batchSize,
		logger:     log,
		now:        time.Now,
	}
}

// Drain claims one batch of due items and processes them sequentially.
// Ordering within a batch follows scheduled_for, so older notifications go
// out first.
func (p *Processor) Drain(ctx context.Context) (Summary, error) {
	var summary Summary

	items, err := p.deliveries.ClaimDue(ctx, p.now(), p.batchSize)
	if err != nil {
		return summary, err
	}

	for _, item := range items {
		p.processItem(ctx, item, &summary)
	}
	return summary, nil
}

func (p *Processor) processItem(ctx context.Context, item model.DeliveryItem, summary *Summary) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{DeliveryID: logger.Ptr(item.ID)})

	result, sendErr := p.sender.Send(ctx, item)

	var err error
	switch result {
	case notify.ResultSent:
		err = p.deliveries.MarkSent(ctx, item.ID)
		summary.Sent++
	case notify.ResultSkipped:
		err = p.deliveries.MarkSkipped(ctx, item.ID, "kind muted")
		summary.Skipped++
	case notify.ResultPermanent:
		err = p.deliveries.MarkFailed(ctx, item.ID, "undeliverable: "+item.Kind)
		summary.Failed++
	case notify.ResultTransient:
		reason := "transient delivery failure"
		if sendErr != nil {
			// Sender errors can embed whole response bodies; keep
			// last_error readable.
			reason = logger.Truncate(sendErr.Error(), maxReasonLen)
		}
		scheduledFor := p.now().Add(Backoff(item.Attempts + 1))
		var updated *model.DeliveryItem
		updated, err = p.deliveries.RescheduleTransient(ctx, item.ID, scheduledFor, reason)
		if err == nil && updated.Status == model.DeliveryStatusFailed {
			summary.Failed++
			p.logger.WarnContext(ctx, "delivery exhausted retries", "kind", item.Kind, "attempts", updated.Attempts)
		} else if err == nil {
			summary.Rescheduled++
			p.logger.InfoContext(ctx, "delivery rescheduled",
				"kind", item.Kind, "attempt", updated.Attempts, "scheduled_for", updated.ScheduledFor)
		}
	}
	if err != nil {
		// Leave the item in processing; the sweeper reclaims it later.
		p.logger.ErrorContext(ctx, "recording delivery result failed",
			"result", result.String(), "error", err)
	}
}

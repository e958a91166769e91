package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"civium.app/pipeline/internal/model"
)

// Keep the stream bounded; consumers that lag more than this lose history.
const streamMaxLen = 100_000

// StreamSender publishes notifications onto a Redis stream the portal's
// consumers read from.
type StreamSender struct {
	client *redis.Client
	stream string
	muted  map[string]bool
	logger *slog.Logger
}

func NewStreamSender(client *redis.Client, stream string, mutedKinds []string, log *slog.Logger) *StreamSender {
	if log == nil {
		log = slog.Default()
	}
	muted := make(map[string]bool, len(mutedKinds))
	for _, k := range mutedKinds {
		muted[k] = true
	}
	return &StreamSender{
		client: client,
		stream: stream,
		muted:  muted,
		logger: log,
	}
}

func (s *StreamSender) Send(ctx context.Context, item model.DeliveryItem) (Result, error) {
	if !knownKind(item.Kind) {
		return ResultPermanent, nil
	}
	if s.muted[item.Kind] {
		return ResultSkipped, nil
	}
	if !json.Valid(item.Payload) {
		return ResultPermanent, nil
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":        item.Kind,
			"delivery_id": item.ID,
			"payload":     string(item.Payload),
			"attempt":     item.Attempts,
			"timestamp":   time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		s.logger.WarnContext(ctx, "stream publish failed", "stream", s.stream, "error", err)
		return ResultTransient, err
	}
	return ResultSent, nil
}

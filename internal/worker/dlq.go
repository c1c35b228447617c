package worker

// dlq.go: jobs that exhaust their retries are moved to a Redis list per
// source queue (dlq:{queue}) for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // RFC 3339
	Attempts      int             `json:"attempts"`
}

// DeadLetter receives jobs that will not be retried.
type DeadLetter interface {
	Send(ctx context.Context, entry DLQEntry)
}

// RedisDLQ is the Redis-list DeadLetter.
type RedisDLQ struct{ rdb *redis.Client }

func NewRedisDLQ(rdb *redis.Client) *RedisDLQ { return &RedisDLQ{rdb: rdb} }

func (q *RedisDLQ) Send(ctx context.Context, entry DLQEntry) {
	if entry.FailedAt == "" {
		entry.FailedAt = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", entry.OriginalQueue).Msg("dlq: failed to marshal entry")
		return
	}

	key := DLQPrefix + entry.OriginalQueue
	if err := q.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", entry.OriginalQueue).
		Str("job_type", entry.JobType).
		Str("reason", entry.Reason).
		Int("attempts", entry.Attempts).
		Msg("dlq: job moved to dead letter queue")
}

// Len returns the number of entries in the DLQ of queue, for monitoring.
func (q *RedisDLQ) Len(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

package worker

// lealtad_worker.go
// Processes loyalty-stamp jobs from QueueLealtad: one POST to the loyalty
// service per job, with exponential backoff. Refusals (4xx) go straight to
// the DLQ; transport errors are retried first.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cajapos/internal/infra"

	"github.com/rs/zerolog/log"
)

// SelloSender is implemented by infra.LealtadClient.
type SelloSender interface {
	AcumularSello(ctx context.Context, payload infra.SelloPayload) error
}

type LealtadWorker struct {
	cliente    SelloSender
	dlq        DeadLetter
	maxIntento int
	espera     time.Duration // first backoff step
}

func NewLealtadWorker(cliente SelloSender, dlq DeadLetter) *LealtadWorker {
	return &LealtadWorker{cliente: cliente, dlq: dlq, maxIntento: 3, espera: time.Second}
}

func (w *LealtadWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload infra.SelloPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.OrdenID == "" {
		log.Error().Err(err).Str("payload", string(raw)).Msg("lealtad_worker: invalid payload")
		w.deadLetter(ctx, raw, "payload inválido", 0)
		return
	}

	intentos := 0
	err := withRetry(ctx, w.maxIntento, w.espera, func(attempt int) error {
		intentos = attempt + 1
		err := w.cliente.AcumularSello(ctx, payload)
		if err != nil && !errors.Is(err, infra.ErrLealtadRechazo) {
			log.Warn().Err(err).Int("attempt", intentos).Str("orden_id", payload.OrdenID).
				Msg("lealtad_worker: attempt failed, retrying")
		}
		return err
	}, func(err error) bool { return !errors.Is(err, infra.ErrLealtadRechazo) })

	if err != nil {
		log.Error().Err(err).Str("orden_id", payload.OrdenID).Int("attempts", intentos).
			Msg("lealtad_worker: stamp failed")
		w.deadLetter(ctx, raw, err.Error(), intentos)
		return
	}
	log.Info().Str("orden_id", payload.OrdenID).Str("cliente_id", payload.ClienteID).Msg("lealtad_worker: stamp recorded")
}

func (w *LealtadWorker) deadLetter(ctx context.Context, raw json.RawMessage, reason string, attempts int) {
	if !json.Valid(raw) {
		raw, _ = json.Marshal(string(raw))
	}
	w.dlq.Send(ctx, DLQEntry{
		OriginalQueue: QueueLealtad,
		JobType:       JobSello,
		Payload:       raw,
		Reason:        reason,
		Attempts:      attempts,
	})
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// (base, 2·base, 4·base…). retryable=false stops early on permanent errors.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error, retryable func(error) bool) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			if retryable != nil && !retryable(err) {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

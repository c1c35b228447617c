package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"cajapos/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	errs  []error // returned in order; nil once exhausted
	calls int
}

func (s *stubSender) AcumularSello(context.Context, infra.SelloPayload) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

type stubDLQ struct{ entries []DLQEntry }

func (q *stubDLQ) Send(_ context.Context, e DLQEntry) { q.entries = append(q.entries, e) }

func newTestWorker(sender SelloSender, dlq DeadLetter) *LealtadWorker {
	w := NewLealtadWorker(sender, dlq)
	w.espera = time.Millisecond
	return w
}

func payloadSello(t *testing.T) json.RawMessage {
	raw, err := json.Marshal(infra.SelloPayload{ClienteID: "c1", OrdenID: "o1"})
	require.NoError(t, err)
	return raw
}

func TestLealtadWorkerReintentaYCompleta(t *testing.T) {
	sender := &stubSender{errs: []error{errors.New("timeout"), errors.New("502")}}
	dlq := &stubDLQ{}
	newTestWorker(sender, dlq).Process(context.Background(), payloadSello(t))

	assert.Equal(t, 3, sender.calls)
	assert.Empty(t, dlq.entries)
}

func TestLealtadWorkerAgotaReintentos(t *testing.T) {
	sender := &stubSender{errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
	dlq := &stubDLQ{}
	newTestWorker(sender, dlq).Process(context.Background(), payloadSello(t))

	assert.Equal(t, 3, sender.calls)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, QueueLealtad, dlq.entries[0].OriginalQueue)
	assert.Equal(t, 3, dlq.entries[0].Attempts)
	assert.Equal(t, "c", dlq.entries[0].Reason)
}

func TestLealtadWorkerRechazoNoReintenta(t *testing.T) {
	sender := &stubSender{errs: []error{fmt.Errorf("%w: status 404", infra.ErrLealtadRechazo)}}
	dlq := &stubDLQ{}
	newTestWorker(sender, dlq).Process(context.Background(), payloadSello(t))

	assert.Equal(t, 1, sender.calls)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, 1, dlq.entries[0].Attempts)
}

func TestLealtadWorkerPayloadInvalido(t *testing.T) {
	sender := &stubSender{}
	dlq := &stubDLQ{}
	newTestWorker(sender, dlq).Process(context.Background(), json.RawMessage(`{"cliente_id":"c"}`))

	assert.Zero(t, sender.calls)
	require.Len(t, dlq.entries, 1)
	assert.True(t, json.Valid(dlq.entries[0].Payload))
}

type recordingHandler struct{ got []json.RawMessage }

func (h *recordingHandler) Process(_ context.Context, p json.RawMessage) { h.got = append(h.got, p) }

func TestPoolDispatchPorTipo(t *testing.T) {
	p := NewPool(nil)
	h := &recordingHandler{}
	p.Register(QueueLealtad, JobSello, h)
	p.Register(QueueLealtad, JobSello, h)
	assert.Equal(t, []string{QueueLealtad}, p.queues)

	raw, err := encodeJob(JobSello, infra.SelloPayload{ClienteID: "c", OrdenID: "o"})
	require.NoError(t, err)
	p.dispatch(context.Background(), QueueLealtad, string(raw))
	p.dispatch(context.Background(), QueueLealtad, `{"type":"desconocido","payload":{}}`)
	p.dispatch(context.Background(), QueueLealtad, `no-json`)

	require.Len(t, h.got, 1)
	assert.JSONEq(t, `{"cliente_id":"c","orden_id":"o"}`, string(h.got[0]))
}

func TestWithRetryRespetaContexto(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, 3, time.Hour, func(int) error { calls++; return errors.New("x") }, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finapi/internal/amqp"
	"finapi/internal/core"
	"finapi/internal/store/memory"
)

// fakeMirror dedups by sort key like the sheet mirror does.
type fakeMirror struct {
	mu     sync.Mutex
	rows   []core.TransactionRecord
	seen   map[string]bool
	failOn string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{seen: map[string]bool{}}
}

func (m *fakeMirror) AppendRecord(_ context.Context, r core.TransactionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.SortKey == m.failOn {
		return "", errors.New("quota exceeded")
	}
	if m.seen[r.SortKey] {
		return "", nil
	}
	m.seen[r.SortKey] = true
	m.rows = append(m.rows, r)
	return "row", nil
}

func rec(day int, amount, tiebreaker string) core.TransactionRecord {
	return core.NewTransactionRecord(core.AnonymousOwner, time.Date(2025, 5, day, 12, 0, 0, 0, time.UTC),
		decimal.RequireFromString(amount), "mercado", "", tiebreaker)
}

func TestHandleRecorded(t *testing.T) {
	mirror := newFakeMirror()
	w := NewMirrorWorker(mirror)
	r := rec(3, "19.90", "0a1b2c3d")

	msg := amqp.NewTransactionRecordedMessage(r)
	require.NoError(t, w.HandleRecorded(context.Background(), msg))
	require.NoError(t, w.HandleRecorded(context.Background(), msg), "redelivery is harmless")

	require.Len(t, mirror.rows, 1)
	got := mirror.rows[0]
	assert.Equal(t, r.PartitionKey, got.PartitionKey)
	assert.Equal(t, r.SortKey, got.SortKey)
	assert.Equal(t, "2025-05", got.Period)
	assert.True(t, r.Amount.Equal(got.Amount))
}

func TestHandleRecorded_Errors(t *testing.T) {
	mirror := newFakeMirror()
	w := NewMirrorWorker(mirror)

	err := w.HandleRecorded(context.Background(), &amqp.TransactionRecordedMessage{ID: "x", PK: "nope", SK: "ts#1"})
	assert.ErrorContains(t, err, "decode record")

	r := rec(4, "1", "")
	mirror.failOn = r.SortKey
	err = w.HandleRecorded(context.Background(), amqp.NewTransactionRecordedMessage(r))
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, mirror.rows)
}

func TestBackfill(t *testing.T) {
	a, b, c := rec(1, "10", ""), rec(2, "20", ""), rec(3, "30", "")
	st := memory.New(a, b, c)
	mirror := newFakeMirror()
	w := NewMirrorWorker(mirror)

	_, err := mirror.AppendRecord(context.Background(), b)
	require.NoError(t, err)

	require.NoError(t, w.Backfill(context.Background(), st, a.PartitionKey))
	require.Len(t, mirror.rows, 3)
	assert.Equal(t, []string{b.SortKey, a.SortKey, c.SortKey},
		[]string{mirror.rows[0].SortKey, mirror.rows[1].SortKey, mirror.rows[2].SortKey})
}

func TestBackfill_PartialFailure(t *testing.T) {
	a, b := rec(1, "10", ""), rec(2, "20", "")
	mirror := newFakeMirror()
	mirror.failOn = a.SortKey
	w := NewMirrorWorker(mirror)

	err := w.Backfill(context.Background(), memory.New(a, b), a.PartitionKey)
	assert.ErrorContains(t, err, "1 of 2 records failed")
	require.Len(t, mirror.rows, 1)
	assert.Equal(t, b.SortKey, mirror.rows[0].SortKey)
}

func TestBackfill_EmptyAndCancelled(t *testing.T) {
	mirror := newFakeMirror()
	w := NewMirrorWorker(mirror)

	assert.NoError(t, w.Backfill(context.Background(), memory.New(), "user#anon#2025-05"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Backfill(ctx, memory.New(rec(1, "1", "")), "user#anon#2025-05")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mirror.rows)
}

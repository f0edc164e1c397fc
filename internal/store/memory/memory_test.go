package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finapi/internal/core"
)

func rec(at time.Time, amount int64, category string) core.TransactionRecord {
	return core.NewTransactionRecord(core.AnonymousOwner, at, decimal.NewFromInt(amount), category, "", "")
}

func TestStorePutAndQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	s := New()
	require.NoError(t, s.Put(ctx, rec(base.Add(2*time.Hour), 30, "c")))
	require.NoError(t, s.Put(ctx, rec(base, 10, "a")))
	require.NoError(t, s.Put(ctx, rec(base.Add(time.Hour), 20, "b")))
	require.NoError(t, s.Put(ctx, rec(base.AddDate(0, 1, 0), 99, "other-month")))

	got, err := s.QueryByPartition(ctx, "user#anon#2025-03")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Category, got[1].Category, got[2].Category})

	assert.Equal(t, 4, s.Len())
}

func TestStorePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	s := New()
	require.NoError(t, s.Put(ctx, rec(at, 10, "first")))
	require.NoError(t, s.Put(ctx, rec(at, 20, "second")))

	got, err := s.QueryByPartition(ctx, "user#anon#2025-03")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second", got[0].Category)
}

func TestStoreQueryEmptyPartition(t *testing.T) {
	got, err := New().QueryByPartition(context.Background(), "user#anon#1999-01")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	err := New().Put(context.Background(), core.TransactionRecord{})
	assert.Error(t, err)
}

func TestNewSeeds(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(rec(at, 1, "x"), rec(at.Add(time.Second), 2, "y"))
	assert.Equal(t, 2, s.Len())
}

package core

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRecord_DerivesKeysFromTimestamp(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.FixedZone("BRT", -3*3600))
	r := NewTransactionRecord("", at, decimal.RequireFromString("12.34"), " Mercado ", "compras", "")

	assert.Equal(t, AnonymousOwner, r.Owner)
	assert.Equal(t, "2025-03", r.Period)
	assert.Equal(t, "user#anon#2025-03", r.PartitionKey)
	assert.Equal(t, "2025-03-14T12:26:53.589793Z", r.IsoTimestamp)
	assert.Equal(t, "ts#2025-03-14T12:26:53.589793Z", r.SortKey)
	assert.Equal(t, "mercado", r.Category)
	assert.Equal(t, "compras", r.Note)
	assert.NoError(t, r.Validate())
}

func TestNewTransactionRecord_PeriodFollowsUTC(t *testing.T) {
	// 23:30 local on March 31st is already April in UTC.
	at := time.Date(2025, 3, 31, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	r := NewTransactionRecord(AnonymousOwner, at, decimal.NewFromInt(1), "", "", "")

	assert.Equal(t, "2025-04", r.Period)
	assert.Equal(t, DefaultCategory, r.Category)
}

func TestSortKey_Tiebreaker(t *testing.T) {
	assert.Equal(t, "ts#2025-01-01T00:00:00.000000Z", SortKey("2025-01-01T00:00:00.000000Z", ""))
	assert.Equal(t, "ts#2025-01-01T00:00:00.000000Z#ab12cd34", SortKey("2025-01-01T00:00:00.000000Z", "ab12cd34"))
}

func TestSortKey_LexicographicOrderIsChronological(t *testing.T) {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{
		9 * time.Second,
		10 * time.Second,
		time.Microsecond,
		0,
		26 * time.Hour,
		500 * time.Millisecond,
	}

	var keys []string
	var times []time.Time
	for _, off := range offsets {
		at := base.Add(off)
		times = append(times, at)
		keys = append(keys, SortKey(FormatTimestamp(at), ""))
	}

	sort.Strings(keys)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := range times {
		assert.Equal(t, SortKey(FormatTimestamp(times[i]), ""), keys[i])
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-03", "2025-03", false},
		{" 2024-12 ", "2024-12", false},
		{"2025-13", "", true},
		{"2025/03", "", true},
		{"march", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.True(t, errors.Is(err, ErrInvalidPeriod))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitPartitionKey(t *testing.T) {
	owner, period, ok := SplitPartitionKey("user#anon#2025-03")
	require.True(t, ok)
	assert.Equal(t, "user#anon", owner)
	assert.Equal(t, "2025-03", period)

	_, _, ok = SplitPartitionKey("nohash")
	assert.False(t, ok)
	_, _, ok = SplitPartitionKey("trailing#")
	assert.False(t, ok)
}

func TestTransactionRecordValidate(t *testing.T) {
	good := NewTransactionRecord(AnonymousOwner, time.Now(), decimal.NewFromInt(5), "x", "", "")
	require.NoError(t, good.Validate())

	bads := []TransactionRecord{
		{SortKey: "ts#1", IsoTimestamp: "1", Category: "x"},
		{PartitionKey: "p", SortKey: "1", IsoTimestamp: "1", Category: "x"},
		{PartitionKey: "p", SortKey: "ts#1", Category: "x"},
		{PartitionKey: "p", SortKey: "ts#1", IsoTimestamp: "1"},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestErrorTypes(t *testing.T) {
	verr := NewValidationError(ErrInvalidDate, "invalid date %q", "yesterday")
	assert.Equal(t, `invalid date "yesterday"`, verr.Error())
	assert.ErrorIs(t, verr, ErrInvalidDate)

	cause := errors.New("throttled")
	serr := &StoreError{Op: "put", Err: cause}
	assert.Equal(t, "store put: throttled", serr.Error())
	assert.ErrorIs(t, serr, cause)
}

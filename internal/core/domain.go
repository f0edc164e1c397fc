package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// AnonymousOwner is the single logical user every record currently belongs to.
	AnonymousOwner = "user#anon"

	// DefaultCategory is stored when the input carries no category.
	DefaultCategory = "uncategorized"

	// PeriodLayout formats the year-month bucket of a record.
	PeriodLayout = "2006-01"

	// TimestampLayout is fixed width so that lexicographic order of sort keys
	// matches chronological order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

	sortKeyPrefix = "ts#"
	keySeparator  = "#"
)

type (
	// TransactionRecord is a single immutable ledger entry.
	TransactionRecord struct {
		Owner        string
		Period       string
		PartitionKey string
		SortKey      string
		Amount       decimal.Decimal
		Category     string
		Note         string
		IsoTimestamp string
	}

	// ValidationError reports malformed or missing input. Err carries one of
	// the sentinel errors below so callers can match with errors.Is.
	ValidationError struct {
		Msg string
		Err error
	}

	// StoreError reports a failed call to the persistence layer.
	StoreError struct {
		Op  string
		Err error
	}
)

var (
	ErrEmptyBody     = errors.New("empty body")
	ErrMissingAmount = errors.New("missing amount")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidBody   = errors.New("invalid body")
	ErrInvalidPeriod = errors.New("invalid period")
)

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "validation failed"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps a sentinel with a human readable message.
func NewValidationError(sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PartitionKey identifies the bucket holding all records of owner for period.
func PartitionKey(owner, period string) string {
	return owner + keySeparator + period
}

// SortKey orders records inside a partition. A non-empty tiebreaker keeps
// records written at the same instant distinct.
func SortKey(isoTimestamp, tiebreaker string) string {
	if tiebreaker == "" {
		return sortKeyPrefix + isoTimestamp
	}
	return sortKeyPrefix + isoTimestamp + keySeparator + tiebreaker
}

// PeriodOf returns the UTC year-month bucket of t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParsePeriod validates a YYYY-MM string.
func ParsePeriod(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return "", NewValidationError(ErrInvalidPeriod, "invalid month %q: expected YYYY-MM", s)
	}
	return t.Format(PeriodLayout), nil
}

// NormalizeCategory lower-cases the label and falls back to DefaultCategory.
func NormalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultCategory
	}
	return s
}

// NewTransactionRecord builds a record whose period and keys are all derived
// from at, so they can never disagree.
func NewTransactionRecord(owner string, at time.Time, amount decimal.Decimal, category, note, tiebreaker string) TransactionRecord {
	if owner == "" {
		owner = AnonymousOwner
	}
	ts := FormatTimestamp(at)
	period := PeriodOf(at)
	return TransactionRecord{
		Owner:        owner,
		Period:       period,
		PartitionKey: PartitionKey(owner, period),
		SortKey:      SortKey(ts, tiebreaker),
		Amount:       amount,
		Category:     NormalizeCategory(category),
		Note:         note,
		IsoTimestamp: ts,
	}
}

// Validate checks the invariants a stored record must satisfy.
func (r TransactionRecord) Validate() error {
	if r.PartitionKey == "" {
		return errors.New("empty partition key")
	}
	if !strings.HasPrefix(r.SortKey, sortKeyPrefix) {
		return fmt.Errorf("sort key %q: missing %q prefix", r.SortKey, sortKeyPrefix)
	}
	if r.IsoTimestamp == "" {
		return errors.New("empty timestamp")
	}
	if r.Category == "" {
		return errors.New("empty category")
	}
	return nil
}

// SplitPartitionKey recovers owner and period from a partition key.
func SplitPartitionKey(pk string) (owner, period string, ok bool) {
	i := strings.LastIndex(pk, keySeparator)
	if i <= 0 || i == len(pk)-1 {
		return "", "", false
	}
	return pk[:i], pk[i+1:], true
}

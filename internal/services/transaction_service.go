package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finapi/internal/core"
	"finapi/internal/ingest"
	"finapi/internal/store"
)

// Notifier announces stored records to downstream consumers.
type Notifier interface {
	PublishTransactionRecorded(ctx context.Context, r core.TransactionRecord) error
	Close() error
}

// Options tunes how the service builds records.
type Options struct {
	Owner             string
	SortKeyTiebreaker bool
	Now               func() time.Time
}

// TransactionService orchestrates recording and reading transactions across
// the configured store and the optional notifier.
type TransactionService struct {
	store      store.Store
	notifier   Notifier
	normalizer *ingest.Normalizer
	now        func() time.Time
}

func NewTransactionService(st store.Store, notifier Notifier, opts Options) *TransactionService {
	n := ingest.NewNormalizer(opts.Owner, opts.SortKeyTiebreaker)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	n.Now = now
	return &TransactionService{
		store:      st,
		notifier:   notifier,
		normalizer: n,
		now:        now,
	}
}

// Record normalizes the raw input, stores it with a single put and publishes
// a recorded event. A publish failure is logged and never surfaced.
func (s *TransactionService) Record(ctx context.Context, in ingest.RawInput) (core.TransactionRecord, error) {
	r, err := s.normalizer.Normalize(in)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	if err := s.store.Put(ctx, r); err != nil {
		return core.TransactionRecord{}, &core.StoreError{Op: "put", Err: err}
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"pk", r.PartitionKey,
		"sk", r.SortKey,
		"category", r.Category)

	if err := s.publish(ctx, r); err != nil {
		slog.ErrorContext(ctx, "Failed to publish recorded event",
			"sk", r.SortKey, "error", err)
	}
	return r, nil
}

// List returns the records of one owner and month in sort key order.
func (s *TransactionService) List(ctx context.Context, owner, period string) ([]core.TransactionRecord, error) {
	pk, err := s.partition(owner, period)
	if err != nil {
		return nil, err
	}
	records, err := s.store.QueryByPartition(ctx, pk)
	if err != nil {
		return nil, &core.StoreError{Op: "query", Err: err}
	}
	if records == nil {
		records = []core.TransactionRecord{}
	}
	return records, nil
}

// MonthlyReport aggregates one owner's month with a single partition query.
func (s *TransactionService) MonthlyReport(ctx context.Context, owner, period string) (core.MonthlyReport, error) {
	pk, err := s.partition(owner, period)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	records, err := s.store.QueryByPartition(ctx, pk)
	if err != nil {
		return core.MonthlyReport{}, &core.StoreError{Op: "query", Err: err}
	}
	_, p, _ := core.SplitPartitionKey(pk)
	return core.Aggregate(p, records), nil
}

// partition resolves defaults: the anonymous owner and the current UTC month.
func (s *TransactionService) partition(owner, period string) (string, error) {
	if owner == "" {
		owner = core.AnonymousOwner
	}
	if period == "" {
		return core.PartitionKey(owner, core.PeriodOf(s.now())), nil
	}
	p, err := core.ParsePeriod(period)
	if err != nil {
		return "", err
	}
	return core.PartitionKey(owner, p), nil
}

func (s *TransactionService) publish(ctx context.Context, r core.TransactionRecord) error {
	if s.notifier == nil {
		slog.DebugContext(ctx, "Notifier not configured, skipping recorded event")
		return nil
	}
	return s.notifier.PublishTransactionRecorded(ctx, r)
}

// Close releases the store (when it holds resources) and the notifier.
func (s *TransactionService) Close() error {
	var errs []error

	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %v", errs)
	}
	return nil
}

package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finapi/internal/amqp"
	"finapi/internal/core"
	"finapi/internal/store"
)

// Mirror appends a record to an external copy of the ledger. It returns an
// empty reference when the record was already there.
type Mirror interface {
	AppendRecord(ctx context.Context, r core.TransactionRecord) (string, error)
}

// MirrorWorker copies recorded transactions into a Mirror.
type MirrorWorker struct {
	mirror Mirror
}

func NewMirrorWorker(mirror Mirror) *MirrorWorker {
	return &MirrorWorker{mirror: mirror}
}

// HandleRecorded processes a single transaction recorded message from AMQP.
// A returned error makes the consumer requeue the message.
func (w *MirrorWorker) HandleRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing recorded message",
		"id", msg.ID,
		"pk", msg.PK,
		"sk", msg.SK)

	r, err := msg.Record()
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return w.mirrorRecord(ctx, r)
}

// Backfill mirrors every stored record of one partition. It recovers from
// messages lost while the worker or the broker was down; records already
// mirrored are skipped by the Mirror.
func (w *MirrorWorker) Backfill(ctx context.Context, reader store.PartitionReader, partitionKey string) error {
	records, err := reader.QueryByPartition(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("query partition %s: %w", partitionKey, err)
	}
	if len(records) == 0 {
		slog.InfoContext(ctx, "No records to backfill", "pk", partitionKey)
		return nil
	}

	successCount := 0
	errorCount := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirrorRecord(ctx, r); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record during backfill",
				"sk", r.SortKey, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Backfill completed",
		"pk", partitionKey,
		"total", len(records),
		"mirrored", successCount,
		"errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("backfill %s: %d of %d records failed", partitionKey, errorCount, len(records))
	}
	return nil
}

func (w *MirrorWorker) mirrorRecord(ctx context.Context, r core.TransactionRecord) error {
	ref, err := w.mirror.AppendRecord(ctx, r)
	if err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}
	if ref == "" {
		slog.DebugContext(ctx, "Record already mirrored", "sk", r.SortKey)
		return nil
	}

	slog.InfoContext(ctx, "Successfully mirrored record",
		"pk", r.PartitionKey,
		"sk", r.SortKey,
		"ref", ref,
		"amount", r.Amount.String())
	return nil
}

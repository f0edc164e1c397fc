package store

import (
	"context"

	"finapi/internal/core"
)

// Ports for outbound persistence adapters.
type (
	// Writer persists a record. Put is an unconditional upsert keyed by
	// (PartitionKey, SortKey).
	Writer interface {
		Put(ctx context.Context, r core.TransactionRecord) error
	}

	// PartitionReader returns every record of one partition, ordered by
	// sort key ascending.
	PartitionReader interface {
		QueryByPartition(ctx context.Context, partitionKey string) ([]core.TransactionRecord, error)
	}

	// Store is what the transaction service needs from a backend.
	Store interface {
		Writer
		PartitionReader
	}
)

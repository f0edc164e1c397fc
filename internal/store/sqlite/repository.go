// Package sqlite stores transactions in a local SQLite database. It mirrors
// the DynamoDB table layout so local runs behave like production.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"finapi/internal/core"
	"finapi/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*Repository)(nil)

type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Put implements store.Writer
func (r *Repository) Put(ctx context.Context, rec core.TransactionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	err := r.queries.UpsertTransaction(ctx, UpsertTransactionParams{
		Pk:       rec.PartitionKey,
		Sk:       rec.SortKey,
		Amount:   rec.Amount.String(),
		Category: rec.Category,
		Note:     rec.Note,
		IsoDate:  rec.IsoTimestamp,
	})
	if err != nil {
		return fmt.Errorf("upsert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"pk", rec.PartitionKey,
		"sk", rec.SortKey,
		"amount", rec.Amount.String())
	return nil
}

// QueryByPartition implements store.PartitionReader
func (r *Repository) QueryByPartition(ctx context.Context, partitionKey string) ([]core.TransactionRecord, error) {
	rows, err := r.queries.ListTransactionsByPartition(ctx, partitionKey)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", partitionKey, err)
	}

	out := make([]core.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(row Transaction) (core.TransactionRecord, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("decode amount of %s/%s: %w", row.Pk, row.Sk, err)
	}
	owner, period, _ := core.SplitPartitionKey(row.Pk)
	return core.TransactionRecord{
		Owner:        owner,
		Period:       period,
		PartitionKey: row.Pk,
		SortKey:      row.Sk,
		Amount:       amount,
		Category:     row.Category,
		Note:         row.Note,
		IsoTimestamp: row.IsoDate,
	}, nil
}

package sqlite

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Transaction struct {
	Pk       string
	Sk       string
	Amount   string
	Category string
	Note     string
	IsoDate  string
}

const upsertTransaction = `-- name: UpsertTransaction :exec
INSERT OR REPLACE INTO transactions (pk, sk, amount, category, note, iso_date)
VALUES (?, ?, ?, ?, ?, ?)
`

type UpsertTransactionParams struct {
	Pk       string
	Sk       string
	Amount   string
	Category string
	Note     string
	IsoDate  string
}

func (q *Queries) UpsertTransaction(ctx context.Context, arg UpsertTransactionParams) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction,
		arg.Pk,
		arg.Sk,
		arg.Amount,
		arg.Category,
		arg.Note,
		arg.IsoDate,
	)
	return err
}

const listTransactionsByPartition = `-- name: ListTransactionsByPartition :many
SELECT pk, sk, amount, category, note, iso_date
FROM transactions
WHERE pk = ?
ORDER BY sk ASC
`

func (q *Queries) ListTransactionsByPartition(ctx context.Context, pk string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByPartition, pk)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.Pk,
			&i.Sk,
			&i.Amount,
			&i.Category,
			&i.Note,
			&i.IsoDate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

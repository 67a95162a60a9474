package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pageSize bounds how many rows one Query round trip fetches.
const pageSize = 200

// DB is the Postgres-backed Store: one records table shared by every
// record kind, plus one secondary index.
type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// RunMigrations creates the records table and its index.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			pk TEXT NOT NULL,
			sk TEXT NOT NULL,
			gsi1pk TEXT,
			gsi1sk TEXT,
			kind TEXT NOT NULL,
			data JSONB NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (pk, sk)
		);
		CREATE INDEX IF NOT EXISTS idx_records_gsi1 ON records(gsi1pk, gsi1sk, pk, sk);
		CREATE INDEX IF NOT EXISTS idx_records_expires_at ON records(expires_at) WHERE expires_at > 0;
	`)
	return err
}

func (db *DB) Get(ctx context.Context, key Key) (Item, error) {
	var (
		kind      string
		data      []byte
		expiresAt int64
	)
	err := db.pool.QueryRow(ctx,
		"SELECT kind, data, expires_at FROM records WHERE pk = $1 AND sk = $2",
		key.PK, key.SK,
	).Scan(&kind, &data, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return rowItem(kind, data, expiresAt)
}

func rowItem(kind string, data []byte, expiresAt int64) (Item, error) {
	rec, err := decodeRecord(Kind(kind), data)
	if err != nil {
		return Item{}, err
	}
	return Item{Record: rec, ExpiresAt: expiresAt}, nil
}

func (db *DB) Put(ctx context.Context, item Item) error {
	if err := validateItem(item); err != nil {
		return err
	}
	return upsert(ctx, db.pool, item)
}

// querier is the part of pgxpool.Pool and pgx.Tx that upsert needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsert(ctx context.Context, q querier, item Item) error {
	data, err := encodeRecord(item.Record)
	if err != nil {
		return err
	}
	key := item.Key()
	var gsi1pk, gsi1sk *string
	if idx, ok := indexKeyOf(item); ok {
		gsi1pk, gsi1sk = &idx.PK, &idx.SK
	}

	var written string
	err = q.QueryRow(ctx,
		`INSERT INTO records (pk, sk, gsi1pk, gsi1sk, kind, data, expires_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         ON CONFLICT (pk, sk) DO UPDATE SET
             gsi1pk = EXCLUDED.gsi1pk,
             gsi1sk = EXCLUDED.gsi1sk,
             kind = EXCLUDED.kind,
             data = EXCLUDED.data,
             expires_at = EXCLUDED.expires_at
         RETURNING pk`,
		key.PK, key.SK, gsi1pk, gsi1sk, string(item.Record.Kind()), data, item.ExpiresAt,
	).Scan(&written)
	return err
}

func (db *DB) Update(ctx context.Context, key Key, patch Patch) (Item, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		kind      string
		data      []byte
		expiresAt int64
	)
	err = tx.QueryRow(ctx,
		"SELECT kind, data, expires_at FROM records WHERE pk = $1 AND sk = $2 FOR UPDATE",
		key.PK, key.SK,
	).Scan(&kind, &data, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}

	current, err := rowItem(kind, data, expiresAt)
	if err != nil {
		return Item{}, err
	}
	updated, err := applyPatch(current, patch)
	if err != nil {
		return Item{}, err
	}
	if err := upsert(ctx, tx, updated); err != nil {
		return Item{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Item{}, err
	}
	return updated, nil
}

func (db *DB) Delete(ctx context.Context, key Key) error {
	_, err := db.pool.Exec(ctx,
		"DELETE FROM records WHERE pk = $1 AND sk = $2",
		key.PK, key.SK,
	)
	return err
}

// Query pages through the partition with keyset pagination until a short
// page comes back.
func (db *DB) Query(ctx context.Context, q Query) ([]Item, error) {
	pkCol, skCol := "pk", "sk"
	order := "sk"
	cursorCols := "sk"
	if q.Index == IndexGSI1 {
		pkCol, skCol = "gsi1pk", "gsi1sk"
		order = "gsi1sk, pk, sk"
		cursorCols = "(gsi1sk, pk, sk)"
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	where = append(where, pkCol+" = "+arg(q.Partition))
	switch q.Sort.Op {
	case SortEqual:
		where = append(where, skCol+" = "+arg(q.Sort.Value))
	case SortBeginsWith:
		p := arg(q.Sort.Value)
		where = append(where, fmt.Sprintf("left(%s, length(%s)) = %s", skCol, p, p))
	case SortBetween:
		where = append(where, fmt.Sprintf("%s BETWEEN %s AND %s", skCol, arg(q.Sort.Value), arg(q.Sort.Upper)))
	}
	base := len(args)

	items := make([]Item, 0)
	var last *[3]string
	for {
		args = args[:base]
		conds := append([]string{}, where...)
		if last != nil {
			if q.Index == IndexGSI1 {
				conds = append(conds, fmt.Sprintf("%s > (%s, %s, %s)", cursorCols, arg(last[0]), arg(last[1]), arg(last[2])))
			} else {
				conds = append(conds, fmt.Sprintf("%s > %s", cursorCols, arg(last[2])))
			}
		}
		sql := fmt.Sprintf(
			"SELECT pk, sk, COALESCE(gsi1sk, ''), kind, data, expires_at FROM records WHERE %s ORDER BY %s LIMIT %d",
			strings.Join(conds, " AND "), order, pageSize,
		)

		rows, err := db.pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		n := 0
		for rows.Next() {
			var (
				pk, sk, gsk, kind string
				data              []byte
				expiresAt         int64
			)
			if err := rows.Scan(&pk, &sk, &gsk, &kind, &data, &expiresAt); err != nil {
				rows.Close()
				return nil, err
			}
			item, err := rowItem(kind, data, expiresAt)
			if err != nil {
				rows.Close()
				return nil, err
			}
			items = append(items, item)
			last = &[3]string{gsk, pk, sk}
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if n < pageSize {
			return items, nil
		}
	}
}

func (db *DB) DeleteExpired(ctx context.Context, now int64) (int, error) {
	result, err := db.pool.Exec(ctx,
		"DELETE FROM records WHERE expires_at > 0 AND expires_at <= $1",
		now,
	)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

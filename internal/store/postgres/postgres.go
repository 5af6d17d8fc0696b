// Package postgres is the production Store backend. Each entity is persisted
// as a JSONB document with a version column; compare-and-swap is a guarded
// UPDATE on (id, version).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahaj-pos/core/internal/domain"
	"github.com/sahaj-pos/core/internal/enum"
	"github.com/sahaj-pos/core/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id      UUID PRIMARY KEY,
	doc     JSONB NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS floor_tables (
	id      UUID PRIMARY KEY,
	doc     JSONB NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS merge_groups (
	id      UUID PRIMARY KEY,
	doc     JSONB NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS split_bills (
	id       UUID PRIMARY KEY,
	order_id UUID NOT NULL,
	status   TEXT NOT NULL,
	doc      JSONB NOT NULL,
	version  BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS split_bills_one_active_per_order
	ON split_bills (order_id) WHERE status = 'ACTIVE';
`

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects, verifies the connection, and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// --- Orders ---

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	var o domain.Order
	if err := s.getDoc(ctx, "orders", id, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) PutOrder(ctx context.Context, o domain.Order, expectedVersion int64) (domain.Order, error) {
	o.Version = expectedVersion + 1
	if err := s.putDoc(ctx, s.pool, "orders", o.ID, o, expectedVersion); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM orders ORDER BY doc->>'created_at' DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- Tables ---

func (s *Store) GetTable(ctx context.Context, id uuid.UUID) (domain.Table, error) {
	var t domain.Table
	if err := s.getDoc(ctx, "floor_tables", id, &t); err != nil {
		return domain.Table{}, err
	}
	return t, nil
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM floor_tables ORDER BY (doc->>'number')::int`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t domain.Table
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PutTables applies every table write in one transaction; the first version
// mismatch rolls all of them back.
func (s *Store) PutTables(ctx context.Context, tables []domain.Table, expectedVersions []int64) ([]domain.Table, error) {
	if len(tables) != len(expectedVersions) {
		return nil, store.ErrConflict
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	out := make([]domain.Table, len(tables))
	for i, t := range tables {
		t.Version = expectedVersions[i] + 1
		if err := s.putDoc(ctx, tx, "floor_tables", t.ID, t, expectedVersions[i]); err != nil {
			return nil, err
		}
		out[i] = t
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

// --- Merge groups ---

func (s *Store) GetMergeGroup(ctx context.Context, id uuid.UUID) (domain.MergeGroup, error) {
	var g domain.MergeGroup
	if err := s.getDoc(ctx, "merge_groups", id, &g); err != nil {
		return domain.MergeGroup{}, err
	}
	return g, nil
}

func (s *Store) PutMergeGroup(ctx context.Context, g domain.MergeGroup, expectedVersion int64) (domain.MergeGroup, error) {
	g.Version = expectedVersion + 1
	if err := s.putDoc(ctx, s.pool, "merge_groups", g.ID, g, expectedVersion); err != nil {
		return domain.MergeGroup{}, err
	}
	return g, nil
}

func (s *Store) DeleteMergeGroup(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM merge_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Split bills ---

func (s *Store) GetSplitBill(ctx context.Context, id uuid.UUID) (domain.SplitBill, error) {
	var b domain.SplitBill
	err := s.scanSplitBill(s.pool.QueryRow(ctx,
		`SELECT doc FROM split_bills WHERE id = $1`, id), &b)
	return b, err
}

func (s *Store) GetActiveSplitBill(ctx context.Context, orderID uuid.UUID) (domain.SplitBill, error) {
	var b domain.SplitBill
	err := s.scanSplitBill(s.pool.QueryRow(ctx,
		`SELECT doc FROM split_bills WHERE order_id = $1 AND status = $2`,
		orderID, enum.SplitBillStatusActive), &b)
	return b, err
}

func (s *Store) PutSplitBill(ctx context.Context, b domain.SplitBill, expectedVersion int64) (domain.SplitBill, error) {
	b.Version = expectedVersion + 1
	doc, err := json.Marshal(b)
	if err != nil {
		return domain.SplitBill{}, fmt.Errorf("marshal split bill: %w", err)
	}

	if expectedVersion == 0 {
		// The partial unique index turns a second concurrent ACTIVE insert
		// for the same order into a 23505.
		_, err := s.pool.Exec(ctx,
			`INSERT INTO split_bills (id, order_id, status, doc, version) VALUES ($1, $2, $3, $4, $5)`,
			b.ID, b.OrderID, b.Status, doc, b.Version)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.SplitBill{}, store.ErrConflict
			}
			return domain.SplitBill{}, err
		}
		return b, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE split_bills SET status = $2, doc = $3, version = $4 WHERE id = $1 AND version = $5`,
		b.ID, b.Status, doc, b.Version, expectedVersion)
	if err != nil {
		return domain.SplitBill{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.SplitBill{}, s.missOrConflict(ctx, "split_bills", b.ID)
	}
	return b, nil
}

// --- Helpers ---

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) getDoc(ctx context.Context, table string, id uuid.UUID, dst any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, table), id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) putDoc(ctx context.Context, db execer, table string, id uuid.UUID, entity any, expectedVersion int64) error {
	doc, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", table, err)
	}

	if expectedVersion == 0 {
		_, err := db.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, doc, version) VALUES ($1, $2, 1)`, table),
			id, doc)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return store.ErrConflict
			}
			return err
		}
		return nil
	}

	tag, err := db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = $2, version = $3 WHERE id = $1 AND version = $4`, table),
		id, doc, expectedVersion+1, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, table, id)
	}
	return nil
}

// missOrConflict disambiguates a zero-row CAS update: the row is either gone
// or at a different version.
func (s *Store) missOrConflict(ctx context.Context, table string, id uuid.UUID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func (s *Store) scanSplitBill(row pgx.Row, b *domain.SplitBill) error {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(raw, b)
}

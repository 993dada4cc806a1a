// Package durable is the authoritative relational store: the raw-SQL UCG
// entity/association/history tables (via pgx) plus the GORM-modelled
// ancillary tables (users, session audit trail, plugin registry).
package durable

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reedcms/reed/reederr"
)

// Pool wraps a pgx connection pool used by the raw-SQL UCG store.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the durable store and verifies reachability.
func NewPool(ctx context.Context, connString string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, reederr.DurableStoreError("create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, reederr.DurableStoreError("ping: %v", err)
	}
	return &Pool{pool: pool}, nil
}

// NewPoolFromRaw wraps an already-constructed pgxpool.Pool (used when the
// pool is shared with the GORM connection's underlying *sql.DB).
func NewPoolFromRaw(pool *pgxpool.Pool) *Pool {
	return &Pool{pool: pool}
}

func (p *Pool) Close() { p.pool.Close() }

func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return reederr.DurableStoreError("exec: %v", err).Wrap(err)
	}
	return nil
}

func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, reederr.DurableStoreError("query: %v", err).Wrap(err)
	}
	return rows, nil
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
func (p *Pool) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return reederr.DurableStoreError("begin tx: %v", err).Wrap(err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return reederr.DurableStoreError("rollback after %v: %v", err, rbErr).Wrap(err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return reederr.DurableStoreError("commit tx: %v", err).Wrap(err)
	}
	return nil
}

// Raw exposes the underlying pool for callers (e.g. gorm) that need to
// share the same connection target.
func (p *Pool) Raw() *pgxpool.Pool { return p.pool }

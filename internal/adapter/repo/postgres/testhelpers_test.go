package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// execCall records one Exec invocation.
type execCall struct {
	sql  string
	args []any
}

// rowsStub implements pgx.Rows over a list of scan functions, one per row.
type rowsStub struct {
	scans []func(dest ...any) error
	pos   int
	err   error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.err }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Next() bool {
	if r.pos >= len(r.scans) {
		return false
	}
	r.pos++
	return true
}
func (r *rowsStub) Scan(dest ...any) error { return r.scans[r.pos-1](dest...) }
func (r *rowsStub) Values() ([]any, error) { return nil, nil }
func (r *rowsStub) RawValues() [][]byte    { return nil }
func (r *rowsStub) Conn() *pgx.Conn        { return nil }

// poolStub implements postgres.PgxPool. Exec results are consumed in order;
// the last entry repeats.
type poolStub struct {
	execCalls []execCall
	execTags  []pgconn.CommandTag
	execErr   error
	row       rowStub
	rows      *rowsStub
	queryErr  error
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execCalls = append(p.execCalls, execCall{sql: sql, args: args})
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	if len(p.execTags) == 0 {
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	tag := p.execTags[0]
	if len(p.execTags) > 1 {
		p.execTags = p.execTags[1:]
	}
	return tag, nil
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row.scan == nil {
		return rowStub{scan: func(...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("transactions not stubbed")
}

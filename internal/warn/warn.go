// Package warn records structured warnings for degraded, best-effort paths:
// a missing option bank, an unresolvable stored option, and similar failures
// that are absorbed rather than surfaced to the caller. Rows land in the
// warnings table so operators can query what was silently substituted.
package warn

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Warning types emitted by the engine.
const (
	TypeOptionBankMissing = "OptionBankMissing"
	TypeOptionUnresolved  = "OptionUnresolved"
)

type Warning struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Key       string `json:"key"` // natural key: question or attempt id
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}

// Recorder is the write side. Implementations must not fail the caller's
// operation: recording a warning about a degraded path is itself best-effort.
type Recorder interface {
	Warn(ctx context.Context, typ, key, detail string)
}

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Warn(ctx context.Context, typ, key, detail string) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO warnings (typ, key, detail, created_at)
		 VALUES ($1,$2,$3,$4)`,
		typ, key, detail, time.Now().Unix())
	if err != nil {
		log.Printf("warn: append failed (%s %s): %v", typ, key, err)
	}
}

// Recent returns the newest warnings, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Warning, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, detail, created_at FROM warnings
		 ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warning
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.Seq, &w.Type, &w.Key, &w.Detail, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Nop discards warnings. Useful for tests and the in-memory store.
type Nop struct{}

func (Nop) Warn(context.Context, string, string, string) {}

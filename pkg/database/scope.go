package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBTX is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// Claims are exposed to row-level security policies through request.jwt.claims.
type Claims struct {
	Subject        string `json:"sub"`
	Role           string `json:"role"`
	AppRole        string `json:"app_role"`
	OrganizationID string `json:"organization_id"`
	SchoolID       string `json:"school_id,omitempty"`
}

// AsUser runs fn in a transaction on db with the caller's claims and the RLS role set
// for the duration of the transaction. The transaction commits when fn returns nil.
func AsUser(ctx context.Context, db *sqlx.DB, rlsRole string, claims Claims, fn func(tx *sqlx.Tx) error) (err error) {
	if claims.Subject == "" {
		return fmt.Errorf("user scope requires a subject")
	}
	if claims.Role == "" {
		claims.Role = rlsRole
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin user scope: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT set_config('request.jwt.claims', $1, true)`, string(payload)); err != nil {
		return fmt.Errorf("set request claims: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(rlsRole)); err != nil {
		return fmt.Errorf("set rls role: %w", err)
	}

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit user scope: %w", err)
	}
	return nil
}

// AsUser runs fn on the user pool with the configured RLS role.
func (p *Pools) AsUser(ctx context.Context, claims Claims, fn func(tx *sqlx.Tx) error) error {
	return AsUser(ctx, p.User, p.RLSRole, claims, fn)
}

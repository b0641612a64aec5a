package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sis-api/pkg/config"
)

// Pools holds one connection pool per credential. Service connects as the privileged
// role and bypasses row-level security; User connects as the public role and only
// runs work through AsUser so policies see the caller's claims.
type Pools struct {
	Service *sqlx.DB
	User    *sqlx.DB
	RLSRole string
}

// Open connects both pools.
func Open(cfg config.DatabaseConfig) (*Pools, error) {
	service, err := NewPostgres(cfg, cfg.ServiceUser, cfg.ServicePassword)
	if err != nil {
		return nil, fmt.Errorf("connect service pool: %w", err)
	}
	user, err := NewPostgres(cfg, cfg.User, cfg.Password)
	if err != nil {
		_ = service.Close()
		return nil, fmt.Errorf("connect user pool: %w", err)
	}
	role := cfg.RLSRole
	if role == "" {
		role = "authenticated"
	}
	return &Pools{Service: service, User: user, RLSRole: role}, nil
}

// Close releases both pools.
func (p *Pools) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	for _, db := range []*sqlx.DB{p.User, p.Service} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewPostgres returns a configured PostgreSQL client authenticated with the given credential.
func NewPostgres(cfg config.DatabaseConfig, user, password string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		user,
		password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

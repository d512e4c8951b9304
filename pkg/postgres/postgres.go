package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxPoolSize     = 10
	defaultConnAttempts    = 10
	defaultConnTimeout     = time.Second
	defaultConnMaxLifetime = time.Hour

	uniqueViolationCode = "23505"
)

type Postgres struct {
	maxPoolSize     int
	connAttempts    int
	connTimeout     time.Duration
	connMaxLifetime time.Duration

	DB  *sql.DB
	log *slog.Logger
}

type Option func(*Postgres)

func WithMaxPoolSize(size int) Option {
	return func(p *Postgres) {
		if size > 0 {
			p.maxPoolSize = size
		}
	}
}

func WithConnAttempts(attempts int) Option {
	return func(p *Postgres) {
		if attempts > 0 {
			p.connAttempts = attempts
		}
	}
}

func WithConnTimeout(timeout time.Duration) Option {
	return func(p *Postgres) {
		if timeout > 0 {
			p.connTimeout = timeout
		}
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(p *Postgres) {
		if lifetime > 0 {
			p.connMaxLifetime = lifetime
		}
	}
}

func New(ctx context.Context, dbURL string, log *slog.Logger, opts ...Option) (*Postgres, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	pg := &Postgres{
		maxPoolSize:     defaultMaxPoolSize,
		connAttempts:    defaultConnAttempts,
		connTimeout:     defaultConnTimeout,
		connMaxLifetime: defaultConnMaxLifetime,
		log:             log,
	}

	for _, opt := range opts {
		opt(pg)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		return nil, err
	}
	db.SetConnMaxLifetime(pg.connMaxLifetime)
	db.SetMaxOpenConns(pg.maxPoolSize)

	for attempts := pg.connAttempts; attempts > 0; attempts-- {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Info("postgres is trying to connect", slog.Int("attempts left", attempts-1), slog.Any("error", err))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pg.connTimeout):
		}
	}
	if err != nil {
		db.Close()
		log.Error("failed to connect to database", slog.Any("error", err))
		return nil, err
	}

	pg.DB = db
	return pg, nil
}

func (p *Postgres) Close() {
	if err := p.DB.Close(); err != nil {
		p.log.Error("failed to close database", slog.Any("error", err))
	}
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// UniqueViolationConstraint returns the constraint named by a unique_violation.
func UniqueViolationConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", false
	}
	return pgErr.ConstraintName, true
}

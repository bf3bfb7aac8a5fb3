package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool configuration defaults
const (
	ConnectionTimeout  = 10 * time.Second
	MaxConnectionsIdle = 5
	MaxConnectionsOpen = 10
	ConnMaxLifetime    = time.Hour
)

var errProviderClosed = errors.New("connection provider is closed")

// Opener opens a database/sql handle; sql.Open in production.
type Opener func(driverName, dsn string) (*sql.DB, error)

// ConnectionProvider lazily opens a single pooled connection and hands the
// same pool to every caller until Close.
type ConnectionProvider struct {
	adapter DBAdapter
	dsn     string
	open    Opener
	logger  *slog.Logger

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewConnectionProvider creates a provider for dsn. No connection is made
// until the first Get.
func NewConnectionProvider(adapter DBAdapter, dsn string, logger *slog.Logger) *ConnectionProvider {
	return &ConnectionProvider{
		adapter: adapter,
		dsn:     dsn,
		open:    sql.Open,
		logger:  logger,
	}
}

// WithOpener replaces the function used to open the pool.
func (p *ConnectionProvider) WithOpener(open Opener) *ConnectionProvider {
	p.open = open
	return p
}

// Get returns the shared pool, opening it on first use. A failed attempt is
// reported as *ConnectionError and leaves the provider empty, so the next
// call tries once more.
func (p *ConnectionProvider) Get(ctx context.Context) (*sql.DB, error) {
	p.mu.RLock()
	db, closed := p.db, p.closed
	p.mu.RUnlock()
	if db != nil && !closed {
		return db, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, &ConnectionError{Err: errProviderClosed}
	}
	if p.db != nil {
		return p.db, nil
	}

	db, err := p.connect(ctx)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	p.db = db
	return db, nil
}

func (p *ConnectionProvider) connect(ctx context.Context) (*sql.DB, error) {
	db, err := p.open(p.adapter.DriverName(), p.adapter.ReadOnlyDSN(p.dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxIdleConns(MaxConnectionsIdle)
	db.SetMaxOpenConns(MaxConnectionsOpen)
	db.SetConnMaxLifetime(ConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer pingCancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	if err := p.adapter.EnforceReadOnly(ctx, db); err != nil {
		p.logger.Warn("could not set read-only mode", "error", err)
	}

	p.logger.Info("database pool opened", "driver", p.adapter.DriverName())
	return db, nil
}

// Close releases the pool. It is safe to call more than once.
func (p *ConnectionProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

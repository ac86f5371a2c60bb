// Package database owns the relational-store lifecycle: database
// creation, schema migration, and the pooled connections handed to the
// loader and query engine.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// Config describes how to reach the Postgres server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	// MaintenanceDB is the database used while verifying that Name exists.
	MaintenanceDB string
	// DataDir optionally points at a local data directory managed by
	// LocalServer; the Manager itself never touches it.
	DataDir  string
	MaxConns int32
}

// DSN builds a connection string for the given database name.
func (c Config) DSN(dbName string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + dbName,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c Config) maintenanceDB() string {
	if c.MaintenanceDB != "" {
		return c.MaintenanceDB
	}
	return "postgres"
}

// Manager lazily initializes the target database and exposes a shared
// connection pool. EnsureReady is safe to call repeatedly and from multiple
// goroutines; once satisfied it is a no-op returning the existing pool.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewManager builds a Manager; no connections are opened until EnsureReady.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// EnsureReady verifies the target database exists (creating it if absent),
// applies the schema and indexes, and returns the connection pool.
func (m *Manager) EnsureReady(ctx context.Context) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		return m.pool, nil
	}

	if err := m.ensureDatabase(ctx); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(m.cfg.DSN(m.cfg.Name))
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if m.cfg.MaxConns > 0 {
		poolCfg.MaxConns = m.cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	m.pool = pool
	m.logger.Info("database ready",
		zap.String("database", m.cfg.Name),
		zap.String("host", m.cfg.Host),
	)
	return pool, nil
}

// Pool returns the pool established by a prior EnsureReady, or nil.
func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool
}

// Close releases the pool. A closed Manager may be re-initialized by a
// subsequent EnsureReady.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
}

func (m *Manager) ensureDatabase(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, m.cfg.DSN(m.cfg.maintenanceDB()))
	if err != nil {
		return fmt.Errorf("connect maintenance database: %w", err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			m.logger.Debug("close maintenance connection", zap.Error(cerr))
		}
	}()

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", m.cfg.Name).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}
	if exists {
		return nil
	}

	m.logger.Info("creating database", zap.String("database", m.cfg.Name))
	stmt := fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		pgx.Identifier{m.cfg.Name}.Sanitize(),
		pgx.Identifier{m.cfg.User}.Sanitize(),
	)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", m.cfg.Name, err)
	}
	return nil
}

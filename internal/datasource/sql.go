/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/raphaelisaac/hulken/internal/logging"
)

const (
	// DefaultQueryTimeout bounds a single warehouse round trip.
	DefaultQueryTimeout = 5 * time.Minute

	defaultMaxOpenConns = 4
	defaultRetries      = 2
)

// Config holds warehouse connection settings.
type Config struct {
	Driver Dialect

	// DSN is a driver connection string. For ClickHouse it may be left
	// empty in favour of Addr and the auth fields.
	DSN string

	Addr     []string
	Database string
	Username string
	Password string

	QueryTimeout time.Duration
	MaxOpenConns int

	// Retries is how many times a query is re-issued after the driver
	// reports a bad pooled connection.
	Retries int
}

// SQLSource is a DataSource over database/sql.
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	retry   retrypolicy.RetryPolicy[[]Row]
	logger  *logrus.Entry
}

// Open connects to the warehouse and pings it. A failure here is the one
// condition that aborts a run before any check executes.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (*SQLSource, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case Postgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	case ClickHouse:
		opts := &clickhouse.Options{
			Addr: cfg.Addr,
			Auth: clickhouse.Auth{
				Database: cfg.Database,
				Username: cfg.Username,
				Password: cfg.Password,
			},
		}
		if cfg.DSN != "" {
			opts, err = clickhouse.ParseDSN(cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("failed to parse clickhouse DSN: %w", err)
			}
		}
		db = clickhouse.OpenDB(opts)
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	retries := cfg.Retries
	if retries < 0 {
		retries = defaultRetries
	}
	src := NewSQLSource(db, cfg.Driver, cfg.QueryTimeout, retries, logger)
	src.logger.WithFields(logging.Fields{
		"max_open_conns": maxOpen,
		"query_timeout":  src.timeout.String(),
	}).Info("Warehouse connected")
	return src, nil
}

// NewSQLSource wraps an already opened pool.
func NewSQLSource(db *sql.DB, dialect Dialect, timeout time.Duration, retries int, logger *logrus.Logger) *SQLSource {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &SQLSource{
		db:      db,
		dialect: dialect,
		timeout: timeout,
		retry: retrypolicy.NewBuilder[[]Row]().
			HandleErrors(driver.ErrBadConn).
			WithMaxRetries(retries).
			WithBackoff(200*time.Millisecond, 2*time.Second).
			Build(),
		logger: logger.WithField("dialect", string(dialect)),
	}
}

func (s *SQLSource) Dialect() Dialect {
	return s.dialect
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}

// Execute binds q, runs it under the per-query timeout and materializes
// every row. Any failure comes back as a *QueryError.
func (s *SQLSource) Execute(ctx context.Context, q Query) ([]Row, error) {
	text, args, err := q.Bind(s.dialect)
	if err != nil {
		return nil, &QueryError{Query: q.Name, Err: err}
	}

	start := time.Now()
	rows, err := failsafe.With(s.retry).WithContext(ctx).Get(func() ([]Row, error) {
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.query(qctx, text, args)
	})
	entry := s.logger.WithFields(logging.Fields{
		"query":    q.Name,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Query failed")
		return nil, &QueryError{Query: q.Name, Err: err}
	}
	entry.WithField("rows", len(rows)).Debug("Query executed")
	return rows, nil
}

func (s *SQLSource) query(ctx context.Context, text string, args []any) ([]Row, error) {
	rs, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, wrapDeadline(ctx, err)
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		out = append(out, NewRow(cols, vals))
	}
	if err := rs.Err(); err != nil {
		return nil, wrapDeadline(ctx, err)
	}
	return out, nil
}

// wrapDeadline makes sure a timeout surfaces as context.DeadlineExceeded
// even when the driver reports it as a generic cancellation.
func wrapDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

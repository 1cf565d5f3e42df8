// Package executor runs accepted queries against the lab database through a
// bounded connection pool. Executing a rejected query is a programming error
// and is signaled as such, distinct from runtime failures.
package executor

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/metrics"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/validator"
)

// Config bounds the pool and per-query behavior.
type Config struct {
	DSN             string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PoolWaitTimeout time.Duration
	QueryTimeout    time.Duration
	RowCap          int
}

// ExecutionResult holds the rows returned by one query.
type ExecutionResult struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	Truncated bool                     `json:"truncated"`
	Duration  time.Duration            `json:"duration"`
}

// Executor runs validated queries with a pool-wait bound, a per-query
// timeout, and a row cap.
type Executor struct {
	db     *sql.DB
	config Config
	logger *logging.Logger
}

// New opens the database pool. The pool is lazy; Ping on first use reports
// connectivity problems.
func New(config Config, logger *logging.Logger) (*Executor, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeConfig, "invalid database configuration")
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	return &Executor{db: db, config: config, logger: logger}, nil
}

// NewWithDB wraps an existing pool. Used by tests and by callers that
// manage the pool themselves.
func NewWithDB(db *sql.DB, config Config, logger *logging.Logger) *Executor {
	return &Executor{db: db, config: config, logger: logger}
}

// Execute runs an accepted query and returns up to RowCap rows, setting
// Truncated instead of failing when more rows exist. The connection goes
// back to the pool on every exit path.
func (e *Executor) Execute(ctx context.Context, validated validator.ValidatedQuery) (*ExecutionResult, error) {
	if !validated.Accepted {
		return nil, errors.Newf(errors.ErrTypeInternal,
			"executor called with a rejected query (reason: %s)", validated.Reason)
	}

	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	queryCtx, cancel := context.WithTimeout(ctx, e.config.QueryTimeout)
	defer cancel()

	start := time.Now()

	rows, err := conn.QueryContext(queryCtx, validated.SQL)
	if err != nil {
		return nil, e.classify(queryCtx, err)
	}
	defer rows.Close()

	result, err := e.collect(queryCtx, rows)
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.ExecutionDuration.Observe(result.Duration.Seconds())

	e.logger.WithFields(map[string]interface{}{
		"stage":       "execute",
		"row_count":   result.RowCount,
		"truncated":   result.Truncated,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("query executed")

	return result, nil
}

// acquire blocks for a pool connection up to the pool-wait timeout.
func (e *Executor) acquire(ctx context.Context) (*sql.Conn, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.config.PoolWaitTimeout)
	defer cancel()

	conn, err := e.db.Conn(waitCtx)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return nil, errors.Wrapf(err, errors.ErrTypePoolExhausted,
				"no pool connection within %s", e.config.PoolWaitTimeout).
				WithSuggestion("Retry shortly, or raise LAB_AI_LAB_DB_MAX_CONNS")
		}

		return nil, errors.Wrap(err, errors.ErrTypeExecution, "could not acquire database connection")
	}

	return conn, nil
}

func (e *Executor) classify(queryCtx context.Context, err error) error {
	if queryCtx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(err, errors.ErrTypeExecutionTimeout,
			"query exceeded the %s timeout", e.config.QueryTimeout).
			WithSuggestion("Narrow the question or add a date range")
	}

	return errors.Wrap(err, errors.ErrTypeExecution, "query failed")
}

func (e *Executor) collect(queryCtx context.Context, rows *sql.Rows) (*ExecutionResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, e.classify(queryCtx, err)
	}

	result := &ExecutionResult{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0, 16),
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))

	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= e.config.RowCap {
			result.Truncated = true
			break
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, e.classify(queryCtx, err)
		}

		row := make(map[string]interface{}, len(columns))

		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}

		result.Rows = append(result.Rows, row)
	}

	if !result.Truncated {
		if err := rows.Err(); err != nil {
			return nil, e.classify(queryCtx, err)
		}
	}

	result.RowCount = len(result.Rows)

	return result, nil
}

// normalizeValue makes driver values JSON-friendly. lib/pq hands back
// []byte for text columns.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}

// Ping verifies database connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.ErrTypeExecution, "lab database unreachable")
	}

	return nil
}

// Close releases the pool.
func (e *Executor) Close() error {
	return e.db.Close()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tuitionbill/tuitionbill/internal/logger"
)

// slowQueryThreshold promotes a successful query log to warn level
const slowQueryThreshold = 500 * time.Millisecond

// TracedQuerier logs every statement issued through the wrapped Querier.
// Bound arguments are never logged, only their count.
type TracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

// NewTracedQuerier creates a new traced querier
func NewTracedQuerier(q Querier, logger *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{
		Querier: q,
		logger:  logger,
		txID:    txID,
	}
}

func (tq *TracedQuerier) trace(ctx context.Context, method, query string, argc int, started time.Time, err error) {
	elapsed := time.Since(started)
	fields := []interface{}{
		"method", method,
		"statement", statementName(query),
		"args", argc,
		"duration_ms", elapsed.Milliseconds(),
	}
	if tq.txID != "" {
		fields = append(fields, "tx_id", tq.txID)
	}

	log := tq.logger.WithContext(ctx)
	var pqErr *pq.Error
	switch {
	case err == nil && elapsed >= slowQueryThreshold:
		log.Warnw("slow database query", append(fields, "query", query)...)
	case err == nil:
		log.Debugw("database query completed", fields...)
	case errors.Is(err, sql.ErrNoRows):
		log.Debugw("database query returned no rows", fields...)
	case errors.As(err, &pqErr) && pqErr.Code.Class() == "23":
		log.Warnw("database constraint violated",
			append(fields, "constraint", pqErr.Constraint, "code", string(pqErr.Code))...)
	default:
		log.Errorw("database query failed", append(fields, "query", query, "error", err)...)
	}
}

// statementName returns the leading keyword and target table of a statement,
// e.g. "UPDATE payments".
func statementName(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	verb := strings.ToUpper(fields[0])
	var marker string
	switch verb {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return verb + " " + fields[1]
		}
		return verb
	default:
		return verb
	}
	for i, f := range fields[:len(fields)-1] {
		if strings.EqualFold(f, marker) {
			return verb + " " + fields[i+1]
		}
	}
	return verb
}

// ExecContext traces ExecContext calls
func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	started := time.Now()
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	tq.trace(ctx, "exec", query, len(args), started, err)
	return result, err
}

// NamedExecContext traces NamedExecContext calls
func (tq *TracedQuerier) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	started := time.Now()
	result, err := tq.Querier.NamedExecContext(ctx, query, arg)
	tq.trace(ctx, "named_exec", query, 1, started, err)
	return result, err
}

// QueryContext traces QueryContext calls
func (tq *TracedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	started := time.Now()
	rows, err := tq.Querier.QueryContext(ctx, query, args...)
	tq.trace(ctx, "query", query, len(args), started, err)
	return rows, err
}

// GetContext traces GetContext calls
func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	started := time.Now()
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	tq.trace(ctx, "get", query, len(args), started, err)
	return err
}

// SelectContext traces SelectContext calls
func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	started := time.Now()
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	tq.trace(ctx, "select", query, len(args), started, err)
	return err
}

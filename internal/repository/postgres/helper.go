package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/lib/pq"
	"github.com/samber/lo"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// pqUniqueViolation is the postgres error code for unique_violation
const pqUniqueViolation = "23505"

// StartRepositorySpan creates a new span for a repository operation
func StartRepositorySpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "repository."+repository+"."+operation)
	if span != nil {
		span.Description = "repository." + repository + "." + operation
		span.Op = "db.postgres"

		span.SetData("repository", repository)
		span.SetData("operation", operation)
		for k, v := range params {
			span.SetData(k, v)
		}
	}
	return span
}

// FinishSpan safely finishes a span
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError marks a span as failed
func SetSpanError(span *sentry.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.Status = sentry.SpanStatusInternalError
	span.SetData("error", err.Error())
}

// isUniqueViolation reports whether err is a unique constraint failure,
// optionally on the named constraint
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// notFound wraps sql.ErrNoRows with the entity's hint
func notFound(err error, entity, id string) error {
	return ierr.WithError(err).
		WithHintf("%s with ID %s was not found", entity, id).
		WithReportableDetails(map[string]any{
			"id": id,
		}).
		Mark(ierr.ErrNotFound)
}

// dbError marks any other driver failure as a database error
func dbError(err error, hint string, details map[string]any) error {
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

// getOne maps the no rows case of a single row lookup to a not found error
func getOne(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(err, entity, id)
	}
	return dbError(err, fmt.Sprintf("Failed to get %s", strings.ToLower(entity)), map[string]any{"id": id})
}

// conditions accumulates positional WHERE clauses. Every clause holds a
// single ? which is rewritten to the next $n placeholder.
type conditions struct {
	clauses []string
	args    []interface{}
}

func newTenantConditions(ctx context.Context) *conditions {
	c := &conditions{}
	c.add("tenant_id = ?", types.GetTenantID(ctx))
	return c
}

func (c *conditions) add(clause string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.Replace(clause, "?", fmt.Sprintf("$%d", len(c.args)), 1))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// applyFilter adds the common status filter
func (c *conditions) applyFilter(filter types.BaseFilter) {
	if filter == nil {
		return
	}
	if status := filter.GetStatus(); status != "" {
		c.add("status = ?", status)
	}
}

// pageClause builds ORDER BY, LIMIT and OFFSET. Sort columns outside
// sortable fall back to created_at.
func (c *conditions) pageClause(filter types.BaseFilter, sortable ...string) string {
	sort, order := types.FILTER_DEFAULT_SORT, types.OrderDesc
	if filter != nil {
		if s := filter.GetSort(); s != "" && (s == "created_at" || lo.Contains(sortable, s)) {
			sort = s
		}
		if filter.GetOrder() == types.OrderAsc {
			order = types.OrderAsc
		}
	}

	clause := fmt.Sprintf(" ORDER BY %s %s, id %s", sort, strings.ToUpper(order), strings.ToUpper(order))
	if filter == nil || filter.IsUnlimited() {
		return clause
	}

	c.args = append(c.args, filter.GetLimit(), filter.GetOffset())
	return clause + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(c.args)-1, len(c.args))
}

// alreadyExists marks a unique constraint failure
func alreadyExists(err error, entity, id string) error {
	return ierr.WithError(err).
		WithHintf("A %s with this identity already exists", entity).
		WithReportableDetails(map[string]any{
			"id": id,
		}).
		Mark(ierr.ErrAlreadyExists)
}

// requireAffected turns an update that matched no row into a not found error
func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "Failed to read affected rows", map[string]any{"id": id})
	}
	if n == 0 {
		return ierr.NewError(strings.ToLower(entity)+" not found").
			WithHintf("%s with ID %s was not found", entity, id).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

package sqldb

import (
	"errors"
	"fmt"

	"sportshub/pkg/tracing"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const spanKey = "sportshub:span"

// registerTracing opens a db.<operation> span around every statement gorm
// runs on the statement's context.
func registerTracing(db *gorm.DB) error {
	cb := db.Callback()
	err := errors.Join(
		cb.Create().Before("gorm:create").Register("sportshub:before_create", startSpan("create")),
		cb.Create().After("gorm:create").Register("sportshub:after_create", endSpan),
		cb.Query().Before("gorm:query").Register("sportshub:before_query", startSpan("query")),
		cb.Query().After("gorm:query").Register("sportshub:after_query", endSpan),
		cb.Update().Before("gorm:update").Register("sportshub:before_update", startSpan("update")),
		cb.Update().After("gorm:update").Register("sportshub:after_update", endSpan),
		cb.Delete().Before("gorm:delete").Register("sportshub:before_delete", startSpan("delete")),
		cb.Delete().After("gorm:delete").Register("sportshub:after_delete", endSpan),
		cb.Row().Before("gorm:row").Register("sportshub:before_row", startSpan("row")),
		cb.Row().After("gorm:row").Register("sportshub:after_row", endSpan),
		cb.Raw().Before("gorm:raw").Register("sportshub:before_raw", startSpan("raw")),
		cb.Raw().After("gorm:raw").Register("sportshub:after_raw", endSpan),
	)
	if err != nil {
		return fmt.Errorf("failed to register tracing callbacks: %w", err)
	}
	return nil
}

func startSpan(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx, span := tracing.TraceDatabaseOperation(tx.Statement.Context, operation, tx.Statement.Table)
		tx.Statement.Context = ctx
		tx.InstanceSet(spanKey, span)
	}
}

func endSpan(tx *gorm.DB) {
	v, ok := tx.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		tracing.RecordError(tx.Statement.Context, tx.Error)
	}
	span.End()
}

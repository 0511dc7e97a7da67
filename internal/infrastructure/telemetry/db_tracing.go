package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls query-level tracing on the ledger database.
// LogFullSQL puts bind variables into span attributes, so it stays off
// outside development; charge amounts and lease ids would leak into the
// trace backend otherwise.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns the secure defaults: tracing off, SQL
// variables hidden, 200ms slow-query threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin layers slow-query and error marking on top of otelgorm.
type DBTracingPlugin struct {
	config DBTracingConfig
	log    *zap.Logger
}

// NewDBTracingPlugin creates the plugin; call RegisterOtelGorm to attach it.
func NewDBTracingPlugin(cfg DBTracingConfig, log *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, log: log}
}

// RegisterOtelGorm installs otelgorm plus the timing callbacks on the
// given gorm instance. A disabled config registers nothing.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.log.Debug("database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerTimingCallbacks(db); err != nil {
		return err
	}

	p.log.Info("database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// registerTimingCallbacks brackets every gorm operation kind with a
// start-time marker and the slow-query inspection.
func (p *DBTracingPlugin) registerTimingCallbacks(db *gorm.DB) error {
	markStart := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}

	cb := db.Callback()
	registrations := []struct {
		before func() error
		after  func() error
	}{
		{
			func() error { return cb.Create().Before("gorm:create").Register("ledger_timing:before_create", markStart) },
			func() error { return cb.Create().After("gorm:create").Register("ledger_timing:after_create", p.inspectQuery) },
		},
		{
			func() error { return cb.Query().Before("gorm:query").Register("ledger_timing:before_query", markStart) },
			func() error { return cb.Query().After("gorm:query").Register("ledger_timing:after_query", p.inspectQuery) },
		},
		{
			func() error { return cb.Update().Before("gorm:update").Register("ledger_timing:before_update", markStart) },
			func() error { return cb.Update().After("gorm:update").Register("ledger_timing:after_update", p.inspectQuery) },
		},
		{
			func() error { return cb.Delete().Before("gorm:delete").Register("ledger_timing:before_delete", markStart) },
			func() error { return cb.Delete().After("gorm:delete").Register("ledger_timing:after_delete", p.inspectQuery) },
		},
		{
			func() error { return cb.Row().Before("gorm:row").Register("ledger_timing:before_row", markStart) },
			func() error { return cb.Row().After("gorm:row").Register("ledger_timing:after_row", p.inspectQuery) },
		},
		{
			func() error { return cb.Raw().Before("gorm:raw").Register("ledger_timing:before_raw", markStart) },
			func() error { return cb.Raw().After("gorm:raw").Register("ledger_timing:after_raw", p.inspectQuery) },
		},
	}

	for _, reg := range registrations {
		if err := reg.before(); err != nil {
			return err
		}
		if err := reg.after(); err != nil {
			return err
		}
	}
	return nil
}

// inspectQuery runs after each operation: stamps table and row counts,
// marks errors, and flags queries over the slow threshold.
func (p *DBTracingPlugin) inspectQuery(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if start, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(start)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "ledger_query_start"

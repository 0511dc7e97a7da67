package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tollEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Gate      string `gorm:"size:100"`
	CreatedAt time.Time
}

func openTracedDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tollEntry{}))
	return db
}

func enabledDBTracingConfig() DBTracingConfig {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	return cfg
}

func TestDefaultDBTracingConfig_SecureByDefault(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL, "SQL variables must stay out of spans unless opted in")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestRegisterOtelGorm_DisabledRegistersNothing(t *testing.T) {
	db := openTracedDB(t)

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	// Registering twice only fails when callbacks were installed; a
	// disabled plugin must stay re-registerable.
	assert.NoError(t, plugin.RegisterOtelGorm(db))
}

func TestRegisterOtelGorm_EnabledInstallsCallbacks(t *testing.T) {
	db := openTracedDB(t)

	plugin := NewDBTracingPlugin(enabledDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	// The second registration collides on the otelgorm plugin name.
	assert.Error(t, plugin.RegisterOtelGorm(db))
}

func TestRegisterOtelGorm_FullSQLMode(t *testing.T) {
	db := openTracedDB(t)

	cfg := enabledDBTracingConfig()
	cfg.LogFullSQL = true

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	assert.NoError(t, plugin.RegisterOtelGorm(db))
}

func TestTracedQueries_ProduceSpansWithTableAttributes(t *testing.T) {
	db := openTracedDB(t)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	plugin := NewDBTracingPlugin(enabledDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, root := tp.Tracer("billing").Start(context.Background(), "charge.add")

	traced := db.WithContext(ctx)
	require.NoError(t, traced.Create(&tollEntry{Gate: "Al Safa"}).Error)

	var found tollEntry
	require.NoError(t, traced.First(&found, "gate = ?", "Al Safa").Error)
	assert.Equal(t, "Al Safa", found.Gate)

	root.End()

	spans := sr.Ended()
	require.NotEmpty(t, spans)

	var sawTable bool
	for _, s := range spans {
		for _, attr := range s.Attributes() {
			if string(attr.Key) == "db.sql.table" && attr.Value.AsString() == "toll_entries" {
				sawTable = true
			}
		}
	}
	assert.True(t, sawTable, "expected a span carrying the queried table name")
}

func TestSlowQuery_FlagsSpan(t *testing.T) {
	db := openTracedDB(t)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := enabledDBTracingConfig()
	// Everything is slow at a zero-ish threshold.
	cfg.SlowQueryThresh = time.Nanosecond

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, root := tp.Tracer("billing").Start(context.Background(), "charge.list")
	require.NoError(t, db.WithContext(ctx).Create(&tollEntry{Gate: "Al Garhoud"}).Error)
	root.End()

	var flagged bool
	for _, s := range sr.Ended() {
		for _, ev := range s.Events() {
			if ev.Name == "slow_query_warning" {
				flagged = true
			}
		}
	}
	assert.True(t, flagged, "expected a slow_query_warning event")
}

func TestInspectQuery_NoSpanInContext(t *testing.T) {
	db := openTracedDB(t)

	plugin := NewDBTracingPlugin(enabledDBTracingConfig(), zap.NewNop())

	// Without a recording span the inspection is a no-op, not a panic.
	plugin.inspectQuery(db.WithContext(context.Background()))
}

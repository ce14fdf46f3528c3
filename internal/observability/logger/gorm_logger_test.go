package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/schoolbilling/internal/observability/obscontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        time.Millisecond,
		IgnoreRecordNotFound: true,
	})

	ctx := obscontext.WithCorrelationID(context.Background(), "corr-1")
	sql := func() (string, int64) { return "  SELECT * FROM entity_billing_records WHERE id = ?", 1 }

	gl.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))
	gl.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	gl.Trace(ctx, time.Now(), sql, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "db.query", entries[0].Message)
	assert.Equal(t, "SELECT", entries[0].ContextMap()["operation"])
	assert.Equal(t, "corr-1", entries[0].ContextMap()["correlation_id"])
	assert.Equal(t, "db.slow_query", entries[1].Message)
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), DefaultGormLoggerConfig()).LogMode(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "DELETE FROM x", 0 }, errors.New("boom"))
	gl.Error(context.Background(), "ignored")
	assert.Zero(t, logs.Len())
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("insert into t values (1)"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

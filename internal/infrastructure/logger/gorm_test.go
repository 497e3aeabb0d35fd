package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(level gormlogger.LogLevel, opts ...GormOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func stmt(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l, _ := newObservedGorm(gormlogger.Info)
	other := l.LogMode(gormlogger.Error).(*GormLogger)

	assert.Equal(t, gormlogger.Info, l.level)
	assert.Equal(t, gormlogger.Error, other.level)
}

func TestGormLogger_TraceError(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Warn)
	l.Trace(context.Background(), time.Now(), stmt(`INSERT INTO "otif_events"`), errors.New("duplicate key"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, `INSERT INTO "otif_events"`, entries[0].ContextMap()["sql"])
	assert.Equal(t, "gorm", entries[0].LoggerName)
}

func TestGormLogger_TraceRecordNotFoundSkipped(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Info)
	l.Trace(context.Background(), time.Now(), stmt("SELECT 1"), gormlogger.ErrRecordNotFound)
	assert.Zero(t, recorded.Len())
}

func TestGormLogger_TraceSlow(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
	l.Trace(context.Background(), time.Now().Add(-time.Second), stmt("SELECT * FROM invoices"), nil)

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "slow sql", entries[0].Message)
}

func TestGormLogger_TraceRoutineQuery(t *testing.T) {
	t.Run("statement omitted by default", func(t *testing.T) {
		l, recorded := newObservedGorm(gormlogger.Info)
		l.Trace(context.Background(), time.Now(), stmt("SELECT * FROM shipments"), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.NotContains(t, entries[0].ContextMap(), "sql")
	})

	t.Run("statement included with full sql", func(t *testing.T) {
		l, recorded := newObservedGorm(gormlogger.Info, WithFullSQL(true))
		ctx := WithRequestID(context.Background(), "req-7")
		l.Trace(ctx, time.Now(), stmt("SELECT * FROM shipments"), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SELECT * FROM shipments", entries[0].ContextMap()["sql"])
		assert.Equal(t, "req-7", entries[0].ContextMap()["request_id"])
	})
}

func TestGormLogger_Silent(t *testing.T) {
	l, recorded := newObservedGorm(gormlogger.Silent)
	l.Trace(context.Background(), time.Now(), stmt("SELECT 1"), errors.New("boom"))
	l.Info(context.Background(), "x")
	l.Warn(context.Background(), "x")
	l.Error(context.Background(), "x")
	assert.Zero(t, recorded.Len())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Warn, GormLevel("warn"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("bogus"))
}

var _ gormlogger.Interface = (*GormLogger)(nil)

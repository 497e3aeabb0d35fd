package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/freightdesk/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogExporter ships zap entries to the collector alongside the local output
type LogExporter struct {
	provider *sdklog.LoggerProvider
	service  string
}

// NewLogExporter creates an OTLP/gRPC log provider when telemetry is enabled
func NewLogExporter(ctx context.Context, cfg config.TelemetryConfig) (*LogExporter, error) {
	le := &LogExporter{service: cfg.ServiceName}
	if !cfg.Enabled {
		return le, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	le.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(le.provider)
	return le, nil
}

// Attach returns base teed into the OTLP bridge. Entries below base's own
// level are not exported either. With export disabled base is returned as is.
func (le *LogExporter) Attach(base *zap.Logger) *zap.Logger {
	if le.provider == nil {
		return base
	}
	bridge := otelzap.NewCore(le.service, otelzap.WithLoggerProvider(le.provider))
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, &levelGate{Core: bridge, enabler: core})
	}))
}

// Shutdown flushes pending log records
func (le *LogExporter) Shutdown(ctx context.Context) error {
	if le.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := le.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown log provider: %w", err)
	}
	return nil
}

// levelGate limits a core to the levels another core accepts
type levelGate struct {
	zapcore.Core
	enabler zapcore.LevelEnabler
}

func (g *levelGate) Enabled(lvl zapcore.Level) bool {
	return g.enabler.Enabled(lvl) && g.Core.Enabled(lvl)
}

func (g *levelGate) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(entry.Level) {
		return ce
	}
	return g.Core.Check(entry, ce)
}

func (g *levelGate) With(fields []zapcore.Field) zapcore.Core {
	return &levelGate{Core: g.Core.With(fields), enabler: g.enabler}
}

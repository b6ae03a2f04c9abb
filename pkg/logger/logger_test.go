package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevels(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(l Logger, msg string)
		expectedLevel zapcore.Level
	}{
		{name: "Debug", log: func(l Logger, msg string) { l.Debug(msg) }, expectedLevel: zapcore.DebugLevel},
		{name: "Info", log: func(l Logger, msg string) { l.Info(msg) }, expectedLevel: zapcore.InfoLevel},
		{name: "Warn", log: func(l Logger, msg string) { l.Warn(msg) }, expectedLevel: zapcore.WarnLevel},
		{name: "Error", log: func(l Logger, msg string) { l.Error(msg) }, expectedLevel: zapcore.ErrorLevel},
		{name: "DebugWithContext", log: func(l Logger, msg string) { l.DebugWithContext(context.Background(), msg) }, expectedLevel: zapcore.DebugLevel},
		{name: "InfoWithContext", log: func(l Logger, msg string) { l.InfoWithContext(context.Background(), msg) }, expectedLevel: zapcore.InfoLevel},
		{name: "WarnWithContext", log: func(l Logger, msg string) { l.WarnWithContext(context.Background(), msg) }, expectedLevel: zapcore.WarnLevel},
		{name: "ErrorWithContext", log: func(l Logger, msg string) { l.ErrorWithContext(context.Background(), msg) }, expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			observerLogger, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(observerLogger)}
			const testMessage = "ABC"

			tc.log(dut, testMessage)

			require.Equal(t, 1, logs.Len())
			actualMessage := logs.All()[0]
			require.Equal(t, testMessage, actualMessage.Message)
			require.Empty(t, actualMessage.ContextMap())
			require.Equal(t, tc.expectedLevel, actualMessage.Level)
		})
	}
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	observerLogger, logs := observer.New(zap.DebugLevel)
	dut := &ZapLogger{zap.New(observerLogger)}

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x02},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	dut.InfoWithContext(ctx, "page fetched", zap.Int("rows", 3))

	require.Equal(t, map[string]interface{}{
		"rows":     int64(3),
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	}, logs.All()[0].ContextMap())
}

func TestWithFields(t *testing.T) {
	observerLogger, logs := observer.New(zap.DebugLevel)
	logger := &ZapLogger{zap.New(observerLogger)}

	const testMessage = "ABC"

	newLogger := logger.With(zap.String("list", "Tasks"))
	newLogger.Info(testMessage)

	// Check that child message carries the context fields
	require.Equal(t, map[string]interface{}{"list": "Tasks"}, logs.All()[0].ContextMap())

	// Check that parent message does not carry the context fields
	logger.Info(testMessage)
	require.Empty(t, logs.All()[1].ContextMap())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			l, err := NewLogger(format, level)
			require.NoError(t, err)
			require.NotNil(t, l)
		}
	}

	l, err := NewLogger("json", "none")
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLogger("json", "verbose")
	require.ErrorContains(t, err, "unknown log level")

	_, err = NewLogger("xml", "info")
	require.ErrorContains(t, err, "unknown log format")

	require.Panics(t, func() { MustNewLogger("json", "verbose") })
}

func TestObserverLogger(t *testing.T) {
	l, logs := NewObserverLogger("info")
	l.Debug("hidden")
	l.Info("shown")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, 1, logs.FilterMessage("shown").Len())
}

package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	require.Equal(t, logger.EnvDev, logger.DetectEnv())

	t.Setenv("APP_ENV", "staging")
	require.Equal(t, logger.EnvStage, logger.DetectEnv())

	t.Setenv("APP_ENV", "production")
	require.Equal(t, logger.EnvProd, logger.DetectEnv())
}

func TestNew_DevStd_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})

	l.Info("Hello world")

	out := buf.String()
	require.False(t, strings.HasPrefix(out, "{"), "expected text output, got %s", out)
	require.Contains(t, out, "Hello world")
	require.Contains(t, out, "service=demo")
	require.Contains(t, out, "env=dev")
}

func TestNew_ProdZap_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	l.Info("booted", slog.String("k", "v"))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "expected JSON line, got %s", buf.String())
	require.Equal(t, "booted", m["msg"])
	require.Equal(t, "demo", m["service"])
	require.Equal(t, "prod", m["env"])
	require.Equal(t, "1.2.3", m["version"])
	require.Equal(t, "INFO", m["level"])
	require.Equal(t, "v", m["k"])
}

func TestNew_DebugBelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: logger.EnvDev, Level: slog.LevelWarn, Output: &buf})

	l.Info("quiet")
	require.Empty(t, buf.String())
}

func TestAttrsFromCtx_PropagatesTraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	var buf bytes.Buffer
	l := logger.New(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	l.InfoContext(ctx, "with trace", logger.Args(ctx)...)

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "expected JSON, got %s", buf.String())
	require.NotNil(t, m["trace_id"])
	require.NotNil(t, m["span_id"])
	require.Equal(t, "with trace", m["msg"])
}

func TestAttrsFromCtx_NoSpan(t *testing.T) {
	require.Nil(t, logger.AttrsFromCtx(context.Background()))
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	scoped := logger.New(logger.Config{Env: logger.EnvDev, Output: &buf}).With("req_id", "r-1")

	ctx := logger.WithContext(context.Background(), scoped)
	logger.FromContext(ctx).Info("scoped")
	require.Contains(t, buf.String(), "req_id=r-1")

	require.NotNil(t, logger.FromContext(context.Background()))
}

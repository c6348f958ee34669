package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
		{"invalid no host", "http://", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestOTLPHostPort(t *testing.T) {
	hp, insecure, err := OTLPHostPort("https://otlp.example.com:4318/otlp")
	require.NoError(t, err)
	assert.Equal(t, "otlp.example.com:4318", hp)
	assert.False(t, insecure)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.NotNil(t, config)
	assert.True(t, config.Enabled)
	assert.Equal(t, "http://localhost:4318", config.OTLPEndpoint)
	assert.Equal(t, ServiceName, config.ServiceName)
	assert.Equal(t, ServiceVersion, config.ServiceVersion)
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.Equal(t, 5*time.Second, config.BatchTimeout)
	assert.Equal(t, 512, config.MaxExportBatch)
	assert.Equal(t, 2048, config.MaxQueueSize)
}

func TestTracerGetters(t *testing.T) {
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetHTTPTracer())
	assert.NotNil(t, GetCacheTracer())
	assert.NotNil(t, GetExternalTracer())
	assert.NotNil(t, GetEngineTracer())
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestSpanHelpers(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), GetTracer("test"), "test-span", StringAttribute("symbol", "AAPL"))
	SetSpanAttributes(span, Int64Attribute("count", 42))
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "test-span", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Contains(t, spans[0].Attributes(), attribute.String("symbol", "AAPL"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("count", 42))
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	_, ok := StartSpan(context.Background(), GetTracer("test"), "ok-span")
	SetSpanStatus(ok, codes.Ok, "success")
	ok.End()
	assert.Equal(t, codes.Ok, recorder.Ended()[1].Status().Code)
}

func TestAttributeHelpers(t *testing.T) {
	strAttr := StringAttribute("key", "value")
	assert.Equal(t, attribute.Key("key"), strAttr.Key)
	assert.Equal(t, "value", strAttr.Value.AsString())

	sliceAttr := StringSliceAttribute("key", []string{"a", "b"})
	assert.Equal(t, attribute.STRINGSLICE, sliceAttr.Value.Type())
	assert.Equal(t, []string{"a", "b"}, sliceAttr.Value.AsStringSlice())

	assert.Equal(t, int64(42), Int64Attribute("key", 42).Value.AsInt64())
	assert.Equal(t, 3.14, Float64Attribute("key", 3.14).Value.AsFloat64())
	assert.True(t, BoolAttribute("key", true).Value.AsBool())
}

func TestInitTelemetryDisabled(t *testing.T) {
	assert.NoError(t, InitTelemetry(TelemetryConfig{Enabled: false}))

	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: true, Exporter: ExporterNone})
	require.NoError(t, err)
	require.NotNil(t, provider.Shutdown)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetryWithProviderInvalidEndpoint(t *testing.T) {
	config := &TelemetryConfig{
		Enabled:      true,
		Exporter:     ExporterOTLP,
		OTLPEndpoint: "invalid-url://[invalid",
	}

	provider, err := InitTelemetryWithProvider(context.Background(), config)
	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")
}

func TestInitTelemetryUnknownExporter(t *testing.T) {
	_, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unknown exporter")
}

func TestInitTelemetryStdoutAndShutdown(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{
		Enabled:     true,
		Exporter:    ExporterStdout,
		ServiceName: "test-service",
		Environment: "test",
		SampleRate:  0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.NoError(t, Shutdown())
	// second shutdown is a no-op
	assert.NoError(t, Shutdown())
}

func TestClampRate(t *testing.T) {
	assert.Equal(t, 1.0, clampRate(0))
	assert.Equal(t, 1.0, clampRate(-1))
	assert.Equal(t, 1.0, clampRate(2))
	assert.Equal(t, 0.25, clampRate(0.25))
}

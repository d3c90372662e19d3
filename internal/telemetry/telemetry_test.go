package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/config"
	"github.com/theikram/Smart-FAQ-Bot-RAG/internal/logging"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, Status{State: StateDisabled}, tel.Status())

	// no-op providers still hand out usable instruments
	_, span := tel.Tracer("test").Start(context.Background(), "noop")
	span.End()
	_, err = tel.Meter("test").Int64Counter("noop_total")
	assert.NoError(t, err)

	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, StateDisabled, tel.Status().State)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Protocol = "carrier-pigeon"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.Equal(t, StateDisabled, tel.Status().State)
}

func TestStatus_DegradeAndStop(t *testing.T) {
	tel := NewTestTelemetry()
	assert.True(t, tel.IsEnabled())
	assert.Equal(t, Status{State: StateOK}, tel.Status())

	tel.degrade(errors.New("exporter refused connection"))
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, Status{State: StateDegraded, Error: "exporter refused connection"}, tel.Status())

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, tel.Status().State)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips validation", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"tls remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}, false},
		{"bad sample rate", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, true},
		{"zero interval", func(c *Config) { c.Enabled = true; c.Metrics.ExportInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.1:4317"))
	assert.True(t, isLocalEndpoint("[::1]:4317"))
	assert.True(t, isLocalEndpoint("http://localhost:4318"))
	assert.False(t, isLocalEndpoint("collector.internal:4317"))
	assert.False(t, isLocalEndpoint("10.0.0.5:4317"))
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		Protocol:    "http/protobuf",
		Insecure:    true,
		ServiceName: "faq",
		SampleRate:  0.5,
		Logs:        true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "faq", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.5, cfg.SampleRate)
	assert.True(t, cfg.Logs.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestTestTelemetry_RecordsSpansAndMetrics(t *testing.T) {
	tel := NewTestTelemetry()
	ctx := context.Background()

	_, span := tel.Tracer("rag").Start(ctx, "rag.Ask")
	span.SetAttributes(attribute.Int("chunks", 3))
	span.End()

	counter, err := tel.Meter("rag").Int64Counter("asks_total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	tel.AssertSpanExists(t, "rag.Ask")
	tel.AssertSpanAttribute(t, "rag.Ask", "chunks", int64(3))

	rm, err := tel.Collect(ctx)
	require.NoError(t, err)
	assert.NotNil(t, FindMetric(rm, "asks_total"))
	assert.Nil(t, FindMetric(rm, "missing_total"))
}

func TestLoggerProvider_ReceivesServiceLogs(t *testing.T) {
	tel := NewTestTelemetry()
	require.NotNil(t, tel.LoggerProvider())

	logCfg := logging.NewDefaultConfig()
	logCfg.Output = logging.OutputConfig{OTEL: true}
	logCfg.Sampling.Enabled = false
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	require.NoError(t, err)

	logger.Warn(context.Background(), "pdf page yielded no text",
		zap.Int("page", 2),
		zap.String("llm.api_key", "sk-or-v1-abcdefghijklmnopqrstuvwxyz"))

	records := tel.LogRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "pdf page yielded no text", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, records[0].Severity())

	var page int64
	var key string
	records[0].WalkAttributes(func(kv otellog.KeyValue) bool {
		switch kv.Key {
		case "page":
			page = kv.Value.AsInt64()
		case "llm.api_key":
			key = kv.Value.AsString()
		}
		return true
	})
	assert.Equal(t, int64(2), page)
	assert.Equal(t, "[REDACTED]", key)
}

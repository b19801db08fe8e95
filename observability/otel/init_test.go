package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-tenant=zizy,broken,=empty, ")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "zizy",
	}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestInitWithoutExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	cfg := Config{ServiceName: "zizyd", Environment: "test"}
	require.True(t, cfg.Disabled())
	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	always := Config{}.sampler().Description()
	require.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), always)
	ratio := Config{SampleRatio: 0.25}.sampler().Description()
	require.Contains(t, ratio, "TraceIDRatioBased{0.25}")
}

func TestEndpointNormalisation(t *testing.T) {
	require.Equal(t, "localhost:4318", Config{}.endpoint())
	require.Equal(t, "collector:4318", Config{Endpoint: " https://collector:4318 "}.endpoint())
	require.Equal(t, "collector:4318", Config{Endpoint: "http://collector:4318"}.endpoint())
}

package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "fortunexd"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "settle", attribute.Int64("pool", 1))
	require.NotNil(t, ctx)
	span.End()
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken,=nokey, tenant=fx ,")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "fx"}, headers)
}

func TestMergeHeaders(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	merged := MergeHeaders(base, map[string]string{"b": "3"})
	require.Equal(t, "3", merged["b"])
	require.Equal(t, "2", base["b"])
}

package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "nftd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =skip,tenant=tickets")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "tickets"}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestSampleRatioBounds(t *testing.T) {
	require.Equal(t, 1.0, sampleRatio(0))
	require.Equal(t, 1.0, sampleRatio(2))
	require.Equal(t, 0.25, sampleRatio(0.25))
}

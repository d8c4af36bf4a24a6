package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Counters(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{ServiceName: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := p.Meter("test").Int64Counter("cart.mutations")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	counter.Add(ctx, 3)

	sums, err := p.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sums["cart.mutations"])
}

func TestProvider_OTLPExporter(t *testing.T) {
	var exports atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/metrics" {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	ctx := context.Background()
	p, err := New(ctx, Config{
		ServiceName:  "test",
		Exporter:     ExporterOTLP,
		OTLPEndpoint: strings.TrimPrefix(collector.URL, "http://"),
		Insecure:     true,
		Interval:     time.Hour,
	})
	require.NoError(t, err)

	counter, err := p.Meter("test").Int64Counter("orders.placed")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(shutdownCtx))
	assert.GreaterOrEqual(t, exports.Load(), int32(1), "shutdown flushes to the collector")
}

func TestProvider_UnknownExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Exporter: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

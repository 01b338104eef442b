package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("minishop", "", reg)

	c1 := r.Counter("payment_events_total", "events", "kind", "outcome")
	c2 := r.Counter("payment_events_total", "events", "kind", "outcome")

	c1.Add(1, observability.L("kind", "payment.succeeded"), observability.L("outcome", "success"))
	c2.Bind(observability.L("kind", "payment.succeeded"), observability.L("outcome", "success")).Add(2)

	n, err := testutil.GatherAndCount(reg, "minishop_payment_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistogramObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("minishop", "", reg)

	h := r.Histogram("usecase_duration_seconds", "latency", prometheus.DefBuckets, "usecase")
	h.Observe(0.1, observability.L("usecase", "checkout"))
	h.Bind(observability.L("usecase", "reconcile")).Observe(0.2)

	n, err := testutil.GatherAndCount(reg, "minishop_usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

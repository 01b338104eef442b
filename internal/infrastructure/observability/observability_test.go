package observability

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToNop(t *testing.T) {
	o := New(nil, nil, nil, nil)
	require.NotNil(t, o.Tracer())
	require.NotNil(t, o.Logger())
	assert.NotPanics(t, func() {
		o.Metrics().Counter(observability.MPaymentEvents).Add(1)
	})
}

func TestRegisterExposesInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := Register(prometrics.New("minishop", "", reg))
	o := New(nil, nil, counters, histograms)

	o.Metrics().Counter(observability.MStockReservations).Add(1, observability.L("outcome", "reserved"))
	o.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.5, observability.L("use_case", "checkout"))

	n, err := testutil.GatherAndCount(reg, "minishop_stock_reservations_total", "minishop_usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

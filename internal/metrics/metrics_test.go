package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("refill", "success", 10*time.Millisecond)
	m.ObserveRequest("refill", "error", time.Millisecond)
	m.ObserveRequest("refill", "error", time.Millisecond)
	m.SetItemCount(domain.Chips, 7)
	m.PublishFailed("kafka")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("refill", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("refill", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.itemCount.WithLabelValues("chips")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishFailure.WithLabelValues("kafka")))
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStoreOperation("persistent", "insert", time.Millisecond, nil)
	m.RecordStoreOperation("persistent", "insert", time.Millisecond, errors.New("x"))
	m.RecordPropagation("insert", nil)
	m.RecordLookup("instant")
	m.RecordMaterialization(3, time.Millisecond, nil)
	m.RecordIncoherence()
	m.UpdateStoreStats("mirror", 12, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("persistent", "insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("persistent", "insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPropagatedTotal.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TemporalLookupsTotal.WithLabelValues("instant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaterializationsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IncoherenceTotal))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.StoreQuadsTotal.WithLabelValues("mirror")))
}

func TestSeparateRegistries(t *testing.T) {
	// registering twice on distinct registries must not panic
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordStoreOperation("persistent", "insert", time.Second, nil)
	m.RecordMaterialization(1, time.Second, nil)
	m.RecordIncoherence()
	m.RunUptime(nil)
}

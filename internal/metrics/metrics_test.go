package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveValidation(time.Now(), true)
	m.ObserveValidation(time.Now(), false)
	m.ObserveValidation(time.Now(), false)
	m.IncrementStale()
	m.IncrementSubmit(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("valid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Validations.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submits.WithLabelValues("finished")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Submits.WithLabelValues("failed")))

	count, err := testutil.GatherAndCount(reg, "form2_field_validation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveValidation(time.Now(), true)
		m.IncrementStale()
		m.IncrementSubmit(false)
	})
}

func TestNew_UnregisteredCollectors(t *testing.T) {
	m := New(nil)
	m.IncrementSubmit(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submits.WithLabelValues("failed")))
}

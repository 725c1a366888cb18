package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveLogin("success")
	m.ObserveLogin("success")
	m.ObserveLogin("invalid_credentials")
	m.ObserveRegistration("policy_violation")
	m.ObservePasswordChange("password_reused")

	assert.InDelta(t, 2, testutil.ToFloat64(m.Logins.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Registrations.WithLabelValues("policy_violation")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PasswordChanges.WithLabelValues("password_reused")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.Logins))
}

func TestNewMetrics_PanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

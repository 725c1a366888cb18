// Package metrics exposes authentication counters and health probes over
// HTTP.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authentication outcomes. It satisfies the service
// recorder interface.
type Metrics struct {
	Logins          *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	PasswordChanges *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		PasswordChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_password_changes_total",
				Help: "Total number of password change attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.Logins, m.Registrations, m.PasswordChanges)
	return m
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRegistration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePasswordChange(outcome string) {
	m.PasswordChanges.WithLabelValues(outcome).Inc()
}

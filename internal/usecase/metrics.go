package usecase

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LoginMetrics counts authenticate outcomes.
type LoginMetrics struct {
	Outcomes *prometheus.CounterVec
}

// NewLoginMetrics constructs and registers the login outcome counter.
func NewLoginMetrics(reg prometheus.Registerer) (*LoginMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "auth",
		Name:      "login_outcomes_total",
		Help:      "Total number of authenticate calls partitioned by outcome.",
	}, []string{"outcome"})

	if err := reg.Register(outcomes); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				outcomes = existing
			} else {
				return nil, fmt.Errorf("existing outcomes collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register outcomes collector: %w", err)
		}
	}

	return &LoginMetrics{Outcomes: outcomes}, nil
}

func (m *LoginMetrics) observe(outcome string) {
	if m == nil || m.Outcomes == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

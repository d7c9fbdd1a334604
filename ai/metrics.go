package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_attempts_total",
			Help: "Completion service attempts by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	credentialRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "completion_credential_rotations_total",
			Help: "Times the completion credential pool advanced to the next slot",
		},
	)
)

package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionRotations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "chat",
		Name:      "session_rotations_total",
		Help:      "Session ids replaced by the backend.",
	})

	resyncAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "chat",
		Name:      "identity_resync_attempts_total",
		Help:      "Session refreshes made after an identity change.",
	})

	catchUpMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "chat",
		Name:      "catchup_messages_total",
		Help:      "Messages seen during catch-up, by outcome (appended, confirmed, duplicate).",
	}, []string{"outcome"})

	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "curios",
		Subsystem: "chat",
		Name:      "sends_total",
		Help:      "User messages sent, by outcome.",
	}, []string{"outcome"})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ChangesIssued counts change tokens issued by kind (verify_account|new_email|new_password).
	ChangesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_changes_issued_total",
			Help: "Total number of pending changes opened",
		},
		[]string{"kind"},
	)

	// ChangesCommitted counts redeemed change tokens by the kind that was applied.
	ChangesCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_changes_committed_total",
			Help: "Total number of pending changes committed",
		},
		[]string{"kind"},
	)

	// ChangesExpired counts pending changes discarded by the lazy expiry path.
	ChangesExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountd_changes_expired_total",
			Help: "Total number of pending changes reset after expiry",
		},
		[]string{"kind"},
	)

	// AccountsCreated counts successful account registrations.
	AccountsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accountd_accounts_created_total",
			Help: "Total number of accounts created",
		},
	)
)

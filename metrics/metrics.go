package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WagerTransitions counts state machine transitions by from/to status
	WagerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_wager_transitions_total",
		Help: "Wager status transitions",
	}, []string{"from", "to"})

	// RaceLosses counts conditional writes lost to a concurrent caller
	RaceLosses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_race_losses_total",
		Help: "Atomic status writes lost to a concurrent operation",
	}, []string{"operation"})

	// EscrowOperations counts escrow coordinator operations by outcome
	EscrowOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_escrow_operations_total",
		Help: "Escrow operations by outcome (ok, replay, provider_error)",
	}, []string{"operation", "outcome"})

	// BalanceChecks counts balancer evaluations by result
	BalanceChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_balance_checks_total",
		Help: "Value balancer evaluations",
	}, []string{"result"})

	// ReconcilerSweeps counts reconciler actions by kind
	ReconcilerSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbook_reconciler_actions_total",
		Help: "Reconciler sweep actions (release_retry, refund_retry, orphan_refund, extend_retry)",
	}, []string{"kind", "outcome"})
)

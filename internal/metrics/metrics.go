package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_guard_decisions_total",
			Help: "Route guard decisions by guard and state.",
		},
		[]string{"guard", "state"},
	)

	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_audit_writes_total",
			Help: "Audit event writes by action and result.",
		},
		[]string{"action", "result"},
	)

	RoleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_role_changes_total",
			Help: "Role change attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(GuardDecisions, AuditWrites, RoleChanges)
}

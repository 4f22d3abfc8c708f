package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the fleet agent's Prometheus registry and meters. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	Ticks             *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	LeaderChanges     prometheus.Counter
	Messages          *prometheus.CounterVec
	RosterMembers     *prometheus.GaugeVec
	InboxDropped      prometheus.Counter
}

// NewMetrics creates a custom registry with the fleet meters.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arc_fleet_operation_duration_seconds",
			Help:    "Duration of operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_fleet_operation_total",
			Help: "Total number of operations.",
		}, []string{"operation", "status"}),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_fleet_ticks_total",
			Help: "Reconciliation ticks by state and result.",
		}, []string{"state", "result"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_fleet_actions_total",
			Help: "Hierarchy actions taken.",
		}, []string{"action"}),
		LeaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arc_fleet_leader_changes_total",
			Help: "Times the recognized leader changed.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_fleet_messages_total",
			Help: "Protocol messages by kind and direction.",
		}, []string{"kind", "direction"}),
		RosterMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arc_fleet_roster_members",
			Help: "Roster members by state.",
		}, []string{"state"}),
		InboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arc_fleet_inbox_dropped_total",
			Help: "Inbound messages dropped because the inbox was full.",
		}),
	}
	m.Registry.MustRegister(
		m.OperationDuration, m.OperationTotal,
		m.Ticks, m.Actions, m.LeaderChanges,
		m.Messages, m.RosterMembers, m.InboxDropped,
	)
	return m
}

// Tick counts one reconciliation step.
func (m *Metrics) Tick(state, result string) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(state, result).Inc()
}

// Action counts one hierarchy action.
func (m *Metrics) Action(action string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action).Inc()
}

// LeaderChanged counts a change of recognized leader.
func (m *Metrics) LeaderChanged() {
	if m == nil {
		return
	}
	m.LeaderChanges.Inc()
}

// Message counts a protocol message. Direction is "in", "out" or "dropped".
func (m *Metrics) Message(kind, direction string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(kind, direction).Inc()
}

// Roster records roster membership gauges.
func (m *Metrics) Roster(total, active, available, inHierarchy int) {
	if m == nil {
		return
	}
	m.RosterMembers.WithLabelValues("total").Set(float64(total))
	m.RosterMembers.WithLabelValues("active").Set(float64(active))
	m.RosterMembers.WithLabelValues("available").Set(float64(available))
	m.RosterMembers.WithLabelValues("in_hierarchy").Set(float64(inHierarchy))
}

// Dropped counts a message discarded at a full inbox.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.InboxDropped.Inc()
}

func (m *Metrics) observe(name, status string, seconds float64) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(name, status).Observe(seconds)
	m.OperationTotal.WithLabelValues(name, status).Inc()
}

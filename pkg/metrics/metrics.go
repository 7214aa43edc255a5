package metrics

import "github.com/prometheus/client_golang/prometheus"

// metrics variables
var (
	HostsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdisco_hosts_probed_total",
			Help: "Total number of probed addresses by outcome",
		},
		[]string{"outcome"},
	)

	DevicesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdisco_devices_classified_total",
			Help: "Total number of classified devices by category",
		},
		[]string{"category"},
	)

	DevicesNeedingVerification = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netdisco_devices_needs_verification_total",
			Help: "Total number of devices flagged for manual verification",
		},
	)

	VlansDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdisco_vlans_discovered_total",
			Help: "Total number of VLANs reported by switches, by discovery path",
		},
		[]string{"path"},
	)

	VlansRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netdisco_vlans_rejected_total",
			Help: "Total number of VLAN entries dropped for an out-of-range id",
		},
	)

	MacEntriesDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "netdisco_mac_entries_discovered_total",
			Help: "Total number of forwarding table entries collected",
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdisco_runs_total",
			Help: "Total number of discovery runs by result",
		},
		[]string{"result"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netdisco_run_duration_seconds",
			Help:    "Duration of a complete discovery run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	AgentCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netdisco_agent_call_duration_seconds",
			Help:    "Duration of Access Agent calls by operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"op"},
	)

	AgentCallErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netdisco_agent_call_errors_total",
			Help: "Total number of failed Access Agent calls by operation",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(HostsProbed)
	prometheus.MustRegister(DevicesClassified)
	prometheus.MustRegister(DevicesNeedingVerification)

	prometheus.MustRegister(VlansDiscovered)
	prometheus.MustRegister(VlansRejected)
	prometheus.MustRegister(MacEntriesDiscovered)

	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)

	prometheus.MustRegister(AgentCallDuration)
	prometheus.MustRegister(AgentCallErrors)
}

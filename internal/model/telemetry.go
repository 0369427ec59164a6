package model

// Node gauge names. Every gauge carries the peer_id and hostname labels.
const (
	MetricPeerScore          = "quilibrium_peer_score"
	MetricMaxFrame           = "quilibrium_max_frame"
	MetricUnclaimedBalance   = "quilibrium_unclaimed_balance"
	MetricPeerStoreCount     = "quilibrium_peer_store_count"
	MetricNetworkPeerCount   = "quilibrium_network_peer_count"
	MetricRing               = "quilibrium_ring"
	MetricSeniority          = "quilibrium_seniority"
	MetricCreatingDataProof  = "quilibrium_creating_data_proof"
	MetricSubmittedDataProof = "quilibrium_submitted_data_proof"
	MetricActiveWorkers      = "quilibrium_active_workers"
	MetricProofIncrement     = "quilibrium_proof_increment"
	MetricProofTimeTaken     = "quilibrium_proof_time_taken"
)

// LabelNames are the label keys of every node gauge, in value order.
var LabelNames = []string{"peer_id", "hostname"}

var metricFields = map[string]Field{
	MetricPeerScore:        FieldPeerScore,
	MetricMaxFrame:         FieldMaxFrame,
	MetricUnclaimedBalance: FieldUnclaimedBalance,
	MetricSeniority:        FieldSeniority,
	MetricRing:             FieldRing,
	MetricActiveWorkers:    FieldActiveWorkers,
}

// FieldForMetric returns the status field a gauge is sourced from, if any.
// Gauges with no status field are populated from logs only.
func FieldForMetric(metric string) (Field, bool) {
	f, ok := metricFields[metric]
	return f, ok
}

// NodeMetrics lists every node gauge name.
var NodeMetrics = []string{
	MetricPeerScore,
	MetricMaxFrame,
	MetricUnclaimedBalance,
	MetricPeerStoreCount,
	MetricNetworkPeerCount,
	MetricRing,
	MetricSeniority,
	MetricCreatingDataProof,
	MetricSubmittedDataProof,
	MetricActiveWorkers,
	MetricProofIncrement,
	MetricProofTimeTaken,
}

// IsNodeMetric reports whether name is one of the node gauges.
func IsNodeMetric(name string) bool {
	for _, m := range NodeMetrics {
		if m == name {
			return true
		}
	}
	return false
}

package model

import "github.com/cockroachdb/apd/v3"

// UnknownRing is the ring value reported when the node has not joined one.
const UnknownRing = -1

// UnknownPeerID is the identity used when CLI output carries no peer id.
const UnknownPeerID = "unknown"

// Field identifies one status field a probe may or may not have obtained.
type Field uint16

const (
	FieldPeerScore Field = 1 << iota
	FieldMaxFrame
	FieldUnclaimedBalance
	FieldSeniority
	FieldRing
	FieldActiveWorkers
)

// StatusRecord is the node status obtained by one probe. It is created fresh
// each poll and owned by that poll cycle.
type StatusRecord struct {
	PeerID           string
	Hostname         string
	PeerScore        float64
	MaxFrame         int64
	UnclaimedBalance *apd.Decimal
	Seniority        uint64
	Ring             int64
	ActiveWorkers    int64

	// Reported holds the fields actually obtained from the source this cycle.
	// Fields not in the set carry their defaults.
	Reported Field
}

// NewStatusRecord returns a record with every field at its default.
func NewStatusRecord(hostname string) *StatusRecord {
	return &StatusRecord{
		Hostname:         hostname,
		Ring:             UnknownRing,
		UnclaimedBalance: apd.New(0, 0),
	}
}

// Mark records that f was obtained from the source.
func (r *StatusRecord) Mark(f Field) {
	r.Reported |= f
}

// Has reports whether f was obtained from the source.
func (r *StatusRecord) Has(f Field) bool {
	return r.Reported&f != 0
}

// Labels returns the label pair correlating every sample of this cycle.
func (r *StatusRecord) Labels() Labels {
	return Labels{PeerID: r.PeerID, Hostname: r.Hostname}
}

// Labels is the (peer_id, hostname) join key shared by API- and log-sourced samples.
type Labels struct {
	PeerID   string
	Hostname string
}

// Values returns the label values in registry order.
func (l Labels) Values() []string {
	return []string{l.PeerID, l.Hostname}
}

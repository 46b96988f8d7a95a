// Package siteid derives the unique, non-negative node id a crdt.Replica
// needs (spec.md §1 explicitly leaves identifier generation to the
// caller). driftline's CLI uses this to mint a stable site id on first
// run instead of asking the operator to pick one.
package siteid

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// New derives a uint64 node id from a freshly generated UUID. Folding
// the UUID's 16 bytes down to 8 via XOR keeps the derivation a pure
// function of random input (no clock, no MAC address) while staying
// collision-resistant enough for the number of replicas this system
// expects to run.
func New() uint64 {
	return FromUUID(uuid.New())
}

// FromUUID derives a node id from an existing UUID, so an operator
// can pin a site id across reinstalls by persisting the UUID string
// rather than the derived integer.
func FromUUID(id uuid.UUID) uint64 {
	b := [16]byte(id)
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	return hi ^ lo
}

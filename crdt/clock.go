package crdt

// LogicalClock is a Lamport clock: a monotonic counter advanced on local
// events and on receipt of a remote db_version. It seeds the ordering
// that makes merge decisions deterministic across replicas.
//
// LogicalClock is not safe for concurrent use, by design: the core is
// single-threaded per Replica and performs no internal locking (the
// caller serializes all operations on a given Replica).
type LogicalClock struct {
	time uint64
}

// Tick advances the clock for a local event and returns the new value.
func (c *LogicalClock) Tick() uint64 {
	c.time++
	return c.time
}

// Update advances the clock past a value observed from a remote replica
// and returns the new value. The result always strictly exceeds both the
// prior local time and the received time, so any event the local replica
// stamps after a merge is ordered after everything it has seen so far.
func (c *LogicalClock) Update(received uint64) uint64 {
	if received > c.time {
		c.time = received
	}
	c.time++
	return c.time
}

// Current returns the clock's value without advancing it.
func (c *LogicalClock) Current() uint64 {
	return c.time
}

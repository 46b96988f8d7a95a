// Package crdt implements a per-column last-write-wins CRDT for
// record-oriented data: a keyed store of records, each column
// independently versioned, that converges deterministically across
// replicas regardless of delivery order or partitioning, without a
// central coordinator or an operation log.
//
// The algorithm is a direct port of the reference implementation's
// CRDT<K, V>: a Lamport clock seeds a per-column (col_version,
// db_version, site_id, seq) tuple on every write, and merge resolves
// conflicts by comparing those tuples, with deletions dominating
// non-deletions at equal col_version so tombstones are absorbing.
//
// A Replica performs no I/O and no internal locking; it is single-
// threaded per instance and the caller is responsible for serializing
// calls to it (see the package-level concurrency note in the exported
// Replica methods).
package crdt

import (
	"errors"
	"fmt"
	"iter"
)

// Sentinel errors returned at the API boundary. The convergence
// algorithm itself has no recoverable error type (anomalies are
// reported as an Outcome, not an error); these only fire for calls
// that are malformed regardless of replica state.
var (
	// ErrReservedColumn is returned when a caller tries to use
	// DeletedColumn as an ordinary field name.
	ErrReservedColumn = errors.New("crdt: column name is reserved")
)

// InsertMode selects how Insert behaves when record_id already names a
// live record. The reference implementation always overwrites with
// fresh col_version=1 metadata (InsertOverwrite); this can lose a
// peer's not-yet-seen higher-col_version update, a tradeoff the
// specification flags as an open question. InsertAsUpdate instead
// behaves like Update, which avoids that loss at the cost of treating
// insert and update identically for existing records.
type InsertMode int

const (
	// InsertOverwrite matches the reference implementation: insert on
	// an existing live record replaces the listed columns with fresh
	// col_version=1 metadata.
	InsertOverwrite InsertMode = iota
	// InsertAsUpdate treats insert on an existing live record as an
	// update: column versions are incremented rather than reset.
	InsertAsUpdate
)

// Option configures a Replica at construction time.
type Option func(*replicaConfig)

type replicaConfig struct {
	insertMode InsertMode
}

// WithInsertMode overrides the default InsertOverwrite behavior. See
// InsertMode for the tradeoff.
func WithInsertMode(m InsertMode) Option {
	return func(c *replicaConfig) { c.insertMode = m }
}

// Replica is a single node's view of the record store: its logical
// clock, its records, and its tombstone set. Replica is generic over
// the record key type K and the field value type V.
//
// Replica is not safe for concurrent use. All operations on a given
// Replica must be serialized by the caller; the type performs no
// locking and offers no cancellation, matching the single-threaded
// design in the specification's concurrency model.
type Replica[K comparable, V any] struct {
	NodeID uint64

	clock      LogicalClock
	records    map[K]Record[V]
	tombstones map[K]struct{}
	insertMode InsertMode
}

// New creates a zero-initialized Replica identified by nodeID (the
// site id stamped on every column version this replica authors).
func New[K comparable, V any](nodeID uint64, opts ...Option) *Replica[K, V] {
	cfg := replicaConfig{insertMode: InsertOverwrite}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Replica[K, V]{
		NodeID:     nodeID,
		records:    make(map[K]Record[V]),
		tombstones: make(map[K]struct{}),
		insertMode: cfg.insertMode,
	}
}

// Clock returns the replica's logical clock value without advancing it.
func (r *Replica[K, V]) Clock() uint64 {
	return r.clock.Current()
}

// IsTombstoned reports whether id has been permanently deleted on this
// replica. Tombstones never clear; this can only go false -> true.
func (r *Replica[K, V]) IsTombstoned(id K) bool {
	_, ok := r.tombstones[id]
	return ok
}

// Get returns a deep copy of the stored Record for id, so the caller
// cannot mutate replica-internal state through it. ok is false if id
// is unknown. A tombstoned id returns ok == true with an empty Fields
// map and a single DeletedColumn entry in ColumnVersions, per the
// data model's tombstone representation.
func (r *Replica[K, V]) Get(id K) (rec Record[V], ok bool) {
	stored, ok := r.records[id]
	if !ok {
		return Record[V]{}, false
	}
	return stored.Clone(), true
}

// Len returns the number of record ids known to the replica, live and
// tombstoned combined.
func (r *Replica[K, V]) Len() int {
	return len(r.records)
}

// Records iterates every record id known to the replica, live and
// tombstoned combined, yielding a deep copy of each Record so the
// caller cannot mutate replica-internal state through it (the same
// aliasing guard Get gives a single lookup). This is the read-only
// inspection accessor the reference implementation's own data/
// tombstones fields give its test suite and embedding callers direct
// access to; range over it rather than reaching into Replica's
// unexported fields.
func (r *Replica[K, V]) Records() iter.Seq2[K, Record[V]] {
	return func(yield func(K, Record[V]) bool) {
		for id, rec := range r.records {
			if !yield(id, rec.Clone()) {
				return
			}
		}
	}
}

// Insert creates or (per InsertMode) overwrites a record with the
// given field values. Insert on a tombstoned id is always a no-op:
// resurrection is forbidden. See InsertMode for behavior on an
// existing live record.
func (r *Replica[K, V]) Insert(id K, fields map[string]V) (Outcome, error) {
	if err := rejectReservedColumns(fields); err != nil {
		return OutcomeMalformed, err
	}
	if r.IsTombstoned(id) {
		return OutcomeNoopTombstoned, nil
	}

	if existing, ok := r.records[id]; ok && r.insertMode == InsertAsUpdate {
		_ = existing
		return r.update(id, fields)
	}

	db := r.clock.Tick()
	rec := newRecord[V]()
	for col, val := range fields {
		rec.Fields[col] = val
		rec.ColumnVersions[col] = ColumnVersion{ColVersion: 1, DBVersion: db, SiteID: r.NodeID, Seq: 0}
	}
	r.records[id] = rec
	return OutcomeApplied, nil
}

// Update mutates existing columns (and adds new ones) on a live
// record. Update is a no-op if id is tombstoned or unknown.
func (r *Replica[K, V]) Update(id K, updates map[string]V) (Outcome, error) {
	if err := rejectReservedColumns(updates); err != nil {
		return OutcomeMalformed, err
	}
	return r.update(id, updates)
}

func (r *Replica[K, V]) update(id K, updates map[string]V) (Outcome, error) {
	if r.IsTombstoned(id) {
		return OutcomeNoopTombstoned, nil
	}
	rec, ok := r.records[id]
	if !ok {
		return OutcomeNoopMissing, nil
	}

	db := r.clock.Tick()
	for col, val := range updates {
		rec.Fields[col] = val
		if cv, exists := rec.ColumnVersions[col]; exists {
			cv.ColVersion++
			cv.DBVersion = db
			cv.Seq++
			cv.SiteID = r.NodeID
			rec.ColumnVersions[col] = cv
		} else {
			rec.ColumnVersions[col] = ColumnVersion{ColVersion: 1, DBVersion: db, SiteID: r.NodeID, Seq: 0}
		}
	}
	r.records[id] = rec
	return OutcomeApplied, nil
}

// Delete tombstones id permanently: fields are cleared and
// column_versions is replaced by a single DeletedColumn entry.
// Delete on an already-tombstoned id is a no-op.
func (r *Replica[K, V]) Delete(id K) Outcome {
	if r.IsTombstoned(id) {
		return OutcomeNoopTombstoned
	}

	db := r.clock.Tick()
	r.tombstones[id] = struct{}{}
	r.records[id] = Record[V]{
		Fields: make(map[string]V),
		ColumnVersions: map[string]ColumnVersion{
			DeletedColumn: {ColVersion: 1, DBVersion: db, SiteID: r.NodeID, Seq: 0},
		},
	}
	return OutcomeApplied
}

func rejectReservedColumns[V any](fields map[string]V) error {
	if _, ok := fields[DeletedColumn]; ok {
		return fmt.Errorf("%w: %q", ErrReservedColumn, DeletedColumn)
	}
	return nil
}

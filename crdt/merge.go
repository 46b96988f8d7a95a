package crdt

// MergeReport summarizes the outcome of a MergeChanges call, one entry
// per incoming Change, in the same order as the input slice. This
// replaces the reference implementation's silent accept/reject with a
// structured return the caller can inspect or log, per the
// specification's own recommendation (§9 Design Notes).
type MergeReport[K comparable] struct {
	Outcomes []ChangeOutcome[K]
}

// ChangeOutcome pairs one incoming change's identity with what
// happened to it.
type ChangeOutcome[K comparable] struct {
	RecordID K
	ColName  string
	Outcome  Outcome
}

// Accepted returns the count of changes that were applied.
func (m MergeReport[K]) Accepted() int {
	n := 0
	for _, o := range m.Outcomes {
		if o.Outcome == OutcomeApplied {
			n++
		}
	}
	return n
}

// MergeChanges applies a batch of foreign changes. For every change,
// regardless of acceptance, the logical clock is advanced past its
// db_version first (this must happen even for rejected or malformed
// changes, so that subsequent local events are ordered after anything
// observed). Changes are otherwise independent: processing order
// within the batch does not affect the final state.
func (r *Replica[K, V]) MergeChanges(changes []Change[K, V]) MergeReport[K] {
	report := MergeReport[K]{Outcomes: make([]ChangeOutcome[K], 0, len(changes))}
	for _, change := range changes {
		outcome := r.mergeOne(change)
		report.Outcomes = append(report.Outcomes, ChangeOutcome[K]{
			RecordID: change.RecordID,
			ColName:  change.ColName,
			Outcome:  outcome,
		})
	}
	return report
}

func (r *Replica[K, V]) mergeOne(change Change[K, V]) Outcome {
	if change.ColVersion == 0 {
		// A real column_version is always >= 1 (invariant 3); zero can
		// only arrive from a malformed or corrupt change. Skip it and
		// still advance the clock below, per the failure semantics.
		r.clock.Update(change.DBVersion)
		return OutcomeMalformed
	}

	r.clock.Update(change.DBVersion)

	local, hasLocal := r.lookupColumnVersion(change.RecordID, change.ColName)
	if !acceptChange(hasLocal, local, change) {
		return OutcomeRejected
	}
	if !change.IsDeletion() && r.IsTombstoned(change.RecordID) {
		// Dropped by the resurrection guard in applyChange.
		return OutcomeNoopTombstoned
	}

	r.applyChange(change)
	return OutcomeApplied
}

func (r *Replica[K, V]) lookupColumnVersion(id K, col string) (ColumnVersion, bool) {
	rec, ok := r.records[id]
	if !ok {
		return ColumnVersion{}, false
	}
	cv, ok := rec.ColumnVersions[col]
	return cv, ok
}

// acceptChange is the merge decision function: given the locally
// stored column version (if any) and an incoming change, decide
// whether the change should replace local state.
//
// Ordering, highest priority first:
//  1. col_version: a strictly newer generation always wins.
//  2. At a col_version tie, a deletion dominates a non-deletion
//     (tombstones are absorbing; this is the anti-resurrection rule).
//  3. At a tie between two deletions or two non-deletions,
//     (site_id, seq) lexicographically — a total order since site ids
//     are globally unique.
//
// local and remote are always looked up under the same column name
// (lookupColumnVersion keys on change.ColName), so whether "local" is
// a deletion is itself determined by remote.ColName: a stored
// DeletedColumn entry can only ever face an incoming DeletedColumn
// change, and a stored ordinary column can only ever face an incoming
// ordinary change for that same column. Clause 2 therefore has no
// branch of its own below: a deletion facing a live record finds no
// local DeletedColumn entry and is accepted outright, and the real
// anti-resurrection guard is the absolute tombstone check mergeOne and
// applyChange perform regardless of col_version.
func acceptChange[K comparable, V any](hasLocal bool, local ColumnVersion, remote Change[K, V]) bool {
	if !hasLocal {
		return true
	}
	if remote.ColVersion > local.ColVersion {
		return true
	}
	if remote.ColVersion < local.ColVersion {
		return false
	}

	if remote.SiteID > local.SiteID {
		return true
	}
	if remote.SiteID < local.SiteID {
		return false
	}
	return remote.Seq > local.Seq
}

func (r *Replica[K, V]) applyChange(change Change[K, V]) {
	cv := ColumnVersion{
		ColVersion: change.ColVersion,
		DBVersion:  change.DBVersion,
		SiteID:     change.SiteID,
		Seq:        change.Seq,
	}

	if change.IsDeletion() {
		r.tombstones[change.RecordID] = struct{}{}
		r.records[change.RecordID] = Record[V]{
			Fields:         make(map[string]V),
			ColumnVersions: map[string]ColumnVersion{DeletedColumn: cv},
		}
		return
	}

	// Tombstones are absorbing: a non-deletion change for an id we
	// already know is deleted is silently dropped, regardless of the
	// version it carries. This is the resurrection guard.
	if r.IsTombstoned(change.RecordID) {
		return
	}

	rec, ok := r.records[change.RecordID]
	if !ok {
		rec = newRecord[V]()
	}
	if change.HasValue {
		rec.Fields[change.ColName] = change.Value
	}
	rec.ColumnVersions[change.ColName] = cv
	r.records[change.RecordID] = rec
}

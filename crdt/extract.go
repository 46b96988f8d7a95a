package crdt

// ChangesSince returns every (record, column) whose stored db_version
// is at or beyond lastDBVersion (inclusive lower bound; 0 returns
// everything). Output order is unspecified — MergeChanges is required
// to be order-independent — and each Change is a value copy, safe to
// hand to another Replica's MergeChanges without aliasing the source.
func (r *Replica[K, V]) ChangesSince(lastDBVersion uint64) []Change[K, V] {
	var out []Change[K, V]
	for id, rec := range r.records {
		for col, cv := range rec.ColumnVersions {
			if cv.DBVersion < lastDBVersion {
				continue
			}
			change := Change[K, V]{
				RecordID:   id,
				ColName:    col,
				ColVersion: cv.ColVersion,
				DBVersion:  cv.DBVersion,
				SiteID:     cv.SiteID,
				Seq:        cv.Seq,
			}
			if col != DeletedColumn {
				if val, ok := rec.Fields[col]; ok {
					change.Value = val
					change.HasValue = true
				}
			}
			out = append(out, change)
		}
	}
	return out
}

// MaxDBVersion returns the highest db_version stamped on any stored
// column version, or 0 if the replica holds no records. Pairing this
// with ChangesSince gives the caller-managed watermark update the
// specification's watermark contract describes: after extracting and
// merging, advance the watermark to this value.
func (r *Replica[K, V]) MaxDBVersion() uint64 {
	var max uint64
	for _, rec := range r.records {
		for _, cv := range rec.ColumnVersions {
			if cv.DBVersion > max {
				max = cv.DBVersion
			}
		}
	}
	return max
}

package crdt

import "testing"

func TestAcceptChangeDecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		hasLocal bool
		local    ColumnVersion
		remote   Change[string, string]
		want     bool
	}{
		{
			name:     "no local entry always accepts",
			hasLocal: false,
			remote:   Change[string, string]{ColVersion: 1, SiteID: 1, Seq: 0},
			want:     true,
		},
		{
			name:     "higher col_version wins",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 1, SiteID: 9, Seq: 9},
			remote:   Change[string, string]{ColVersion: 2, SiteID: 0, Seq: 0},
			want:     true,
		},
		{
			name:     "lower col_version loses",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 3, SiteID: 0, Seq: 0},
			remote:   Change[string, string]{ColVersion: 2, SiteID: 9, Seq: 9},
			want:     false,
		},
		{
			name:     "tie broken by higher site_id",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 1, SiteID: 1, Seq: 0},
			remote:   Change[string, string]{ColVersion: 1, SiteID: 2, Seq: 0},
			want:     true,
		},
		{
			name:     "tie broken by lower site_id loses",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 1, SiteID: 2, Seq: 0},
			remote:   Change[string, string]{ColVersion: 1, SiteID: 1, Seq: 0},
			want:     false,
		},
		{
			name:     "tie on site_id broken by higher seq",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 1, SiteID: 1, Seq: 1},
			remote:   Change[string, string]{ColVersion: 1, SiteID: 1, Seq: 2},
			want:     true,
		},
		{
			name:     "tie on site_id and seq rejects (not strictly greater)",
			hasLocal: true,
			local:    ColumnVersion{ColVersion: 1, SiteID: 1, Seq: 1},
			remote:   Change[string, string]{ColVersion: 1, SiteID: 1, Seq: 1},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := acceptChange(tt.hasLocal, tt.local, tt.remote)
			if got != tt.want {
				t.Errorf("acceptChange(%v, %+v, %+v) = %v, want %v", tt.hasLocal, tt.local, tt.remote, got, tt.want)
			}
		})
	}
}

func TestMergeChangesAdvancesClockEvenWhenRejected(t *testing.T) {
	r := New[string, string](1)
	r.Insert("r1", map[string]string{"tag": "A"})
	before := r.Clock()

	report := r.MergeChanges([]Change[string, string]{
		{RecordID: "r1", ColName: "tag", Value: "stale", HasValue: true, ColVersion: 0, DBVersion: 9999, SiteID: 2, Seq: 0},
	})
	if report.Outcomes[0].Outcome != OutcomeMalformed {
		t.Errorf("outcome = %v, want malformed (col_version 0)", report.Outcomes[0].Outcome)
	}
	if r.Clock() <= before {
		t.Errorf("clock should advance even for a malformed/rejected change: before=%d after=%d", before, r.Clock())
	}
}

func TestMergeChangesRejectsLowerColVersion(t *testing.T) {
	r := New[string, string](1)
	r.Insert("r1", map[string]string{"tag": "A"})
	r.Update("r1", map[string]string{"tag": "B"})

	report := r.MergeChanges([]Change[string, string]{
		{RecordID: "r1", ColName: "tag", Value: "stale", HasValue: true, ColVersion: 1, DBVersion: 1, SiteID: 99, Seq: 0},
	})
	if report.Outcomes[0].Outcome != OutcomeRejected {
		t.Errorf("outcome = %v, want rejected", report.Outcomes[0].Outcome)
	}
	rec, _ := r.Get("r1")
	if rec.Fields["tag"] != "B" {
		t.Errorf("tag = %q, want B (stale change must not apply)", rec.Fields["tag"])
	}
}

func TestMergeChangesResurrectionGuard(t *testing.T) {
	r := New[string, string](1)
	r.Insert("r1", map[string]string{"tag": "A"})
	r.Delete("r1")

	// A non-deletion change with a very high col_version still must
	// not resurrect a tombstoned record.
	report := r.MergeChanges([]Change[string, string]{
		{RecordID: "r1", ColName: "tag", Value: "resurrected", HasValue: true, ColVersion: 100, DBVersion: 100, SiteID: 2, Seq: 0},
	})
	if report.Outcomes[0].Outcome != OutcomeNoopTombstoned {
		t.Fatalf("a change dropped by the resurrection guard should be reported as noop_tombstoned: got %v", report.Outcomes[0].Outcome)
	}
	if !r.IsTombstoned("r1") {
		t.Fatal("r1 must remain tombstoned")
	}
	rec, _ := r.Get("r1")
	if len(rec.Fields) != 0 {
		t.Errorf("resurrection guard failed: fields = %+v", rec.Fields)
	}
}

func TestChangesSinceInclusiveLowerBound(t *testing.T) {
	r := New[string, string](1)
	r.Insert("a", map[string]string{"x": "1"}) // db_version 1
	r.Insert("b", map[string]string{"y": "2"}) // db_version 2

	all := r.ChangesSince(0)
	if len(all) != 2 {
		t.Fatalf("changes_since(0) = %d changes, want 2", len(all))
	}

	since2 := r.ChangesSince(2)
	if len(since2) != 1 || since2[0].RecordID != "b" {
		t.Fatalf("changes_since(2) = %+v, want only b's change", since2)
	}
}

func TestChangesSinceDeletionHasNoValue(t *testing.T) {
	r := New[string, string](1)
	r.Insert("a", map[string]string{"x": "1"})
	r.Delete("a")

	changes := r.ChangesSince(0)
	var deletion *Change[string, string]
	for i := range changes {
		if changes[i].ColName == DeletedColumn {
			deletion = &changes[i]
		}
	}
	if deletion == nil {
		t.Fatal("expected a deletion change")
	}
	if deletion.HasValue {
		t.Errorf("deletion change must not carry a value, got HasValue=true value=%v", deletion.Value)
	}
}

// sync replays source's changes_since(watermark) into target, mirroring
// the reference implementation's sync_nodes helper.
func sync[K comparable, V any](source, target *Replica[K, V], watermark uint64) {
	target.MergeChanges(source.ChangesSince(watermark))
}

func TestScenario1BasicInsertBidirectionalMerge(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node1.Insert("r", map[string]string{"tag": "A"})
	node2.Insert("r", map[string]string{"tag": "B"})

	sync(node1, node2, 0)
	sync(node2, node1, 0)

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2} {
		rec, _ := r.Get("r")
		if rec.Fields["tag"] != "B" {
			t.Errorf("%s: tag = %q, want B (site 2 > site 1 at equal col_version)", name, rec.Fields["tag"])
		}
	}
}

func TestScenario2ConflictingUpdates(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node1.Insert("r", map[string]string{"tag": "X"})
	sync(node1, node2, 0)

	node1.Update("r", map[string]string{"tag": "N1"})
	node2.Update("r", map[string]string{"tag": "N2"})

	sync(node1, node2, 0)
	sync(node2, node1, 0)

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2} {
		rec, _ := r.Get("r")
		if rec.Fields["tag"] != "N2" {
			t.Errorf("%s: tag = %q, want N2", name, rec.Fields["tag"])
		}
	}
}

func TestScenario3DeleteVsConcurrentUpdate(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node1.Insert("r", map[string]string{"tag": "X"})
	sync(node1, node2, 0)

	node1.Delete("r")
	node2.Update("r", map[string]string{"tag": "late"})

	sync(node1, node2, 0)
	sync(node2, node1, 0)

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2} {
		if !r.IsTombstoned("r") {
			t.Errorf("%s: expected r to be tombstoned", name)
		}
		rec, _ := r.Get("r")
		if len(rec.Fields) != 0 {
			t.Errorf("%s: expected empty fields, got %+v", name, rec.Fields)
		}
	}
}

func TestScenario4ResurrectionGuardAcrossSync(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node1.Insert("r", map[string]string{"tag": "X"})
	node1.Delete("r")
	sync(node1, node2, 0)

	outcome, err := node2.Insert("r", map[string]string{"tag": "new"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeNoopTombstoned {
		t.Fatalf("local insert on tombstoned id should no-op, got %v", outcome)
	}

	sync(node1, node2, 0)
	sync(node2, node1, 0)

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2} {
		if !r.IsTombstoned("r") {
			t.Errorf("%s: expected r to be tombstoned", name)
		}
		rec, _ := r.Get("r")
		if len(rec.Fields) != 0 {
			t.Errorf("%s: expected empty fields, got %+v", name, rec.Fields)
		}
	}
}

func TestScenario5MultiUpdateGenerationDominance(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node1.Insert("r", map[string]string{"tag": "X"})
	sync(node1, node2, 0)

	node1.Update("r", map[string]string{"tag": "N1a"})
	node1.Update("r", map[string]string{"tag": "N1b"}) // col_version reaches 3
	node2.Update("r", map[string]string{"tag": "N2"})  // col_version reaches 2

	sync(node1, node2, 0)
	sync(node2, node1, 0)

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2} {
		rec, _ := r.Get("r")
		if rec.Fields["tag"] != "N1b" {
			t.Errorf("%s: tag = %q, want N1b (col_version 3 beats 2 regardless of site)", name, rec.Fields["tag"])
		}
	}
}

func TestScenario6ThreeWayConvergence(t *testing.T) {
	node1 := New[string, string](1)
	node2 := New[string, string](2)
	node3 := New[string, string](3)
	node1.Insert("r1", map[string]string{"owner": "1"})
	node2.Insert("r2", map[string]string{"owner": "2"})
	node3.Insert("r3", map[string]string{"owner": "3"})

	nodes := []*Replica[string, string]{node1, node2, node3}
	for round := 0; round < 2; round++ {
		for _, a := range nodes {
			for _, b := range nodes {
				if a != b {
					sync(a, b, 0)
				}
			}
		}
	}

	for name, r := range map[string]*Replica[string, string]{"node1": node1, "node2": node2, "node3": node3} {
		if r.Len() != 3 {
			t.Errorf("%s: expected 3 records, got %d", name, r.Len())
		}
		for _, id := range []string{"r1", "r2", "r3"} {
			if _, ok := r.Get(id); !ok {
				t.Errorf("%s: missing record %s", name, id)
			}
		}
	}
}

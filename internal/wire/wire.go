// Package wire encodes and decodes crdt.Change batches for transport
// and for snapshotting a replica's change feed to disk. The core
// crdt package only requires that an encoding preserve its seven
// fields and the Option semantics of value (spec.md §6); this package
// provides two conformant encodings, JSONL (one change per line,
// matching the teacher's own internal/jsonl line-oriented format) and
// YAML (a single document per batch).
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/driftline/driftline/crdt"
)

// Record is the wire shape of a crdt.Change[string, json.RawMessage].
// driftline's CLI and storage adapters operate over string record ids
// and arbitrary JSON field values, since the core crdt package is
// generic but a transport/CLI boundary needs one concrete shape.
type Record struct {
	RecordID   string          `json:"record_id" yaml:"record_id"`
	ColName    string          `json:"col_name" yaml:"col_name"`
	Value      json.RawMessage `json:"value,omitempty" yaml:"value,omitempty"`
	HasValue   bool            `json:"-" yaml:"-"`
	ColVersion uint64          `json:"col_version" yaml:"col_version"`
	DBVersion  uint64          `json:"db_version" yaml:"db_version"`
	SiteID     uint64          `json:"site_id" yaml:"site_id"`
	Seq        uint64          `json:"seq" yaml:"seq"`
}

// FromChange converts a crdt.Change into its wire Record.
func FromChange(c crdt.Change[string, json.RawMessage]) Record {
	rec := Record{
		RecordID:   c.RecordID,
		ColName:    c.ColName,
		ColVersion: c.ColVersion,
		DBVersion:  c.DBVersion,
		SiteID:     c.SiteID,
		Seq:        c.Seq,
		HasValue:   c.HasValue,
	}
	if c.HasValue {
		rec.Value = c.Value
	}
	return rec
}

// ToChange converts a wire Record back into a crdt.Change.
func (r Record) ToChange() crdt.Change[string, json.RawMessage] {
	return crdt.Change[string, json.RawMessage]{
		RecordID:   r.RecordID,
		ColName:    r.ColName,
		Value:      r.Value,
		HasValue:   r.HasValue && len(r.Value) > 0,
		ColVersion: r.ColVersion,
		DBVersion:  r.DBVersion,
		SiteID:     r.SiteID,
		Seq:        r.Seq,
	}
}

// WriteJSONL writes one JSON object per line, matching internal/jsonl's
// line-oriented convention.
func WriteJSONL(w io.Writer, changes []crdt.Change[string, json.RawMessage]) error {
	enc := json.NewEncoder(w)
	for _, c := range changes {
		if err := enc.Encode(FromChange(c)); err != nil {
			return fmt.Errorf("wire: encode jsonl record %q/%q: %w", c.RecordID, c.ColName, err)
		}
	}
	return nil
}

// ReadJSONL reads a JSONL change batch previously written by WriteJSONL.
// Malformed lines are skipped, not fatal, matching the core merge
// engine's own best-effort failure semantics (spec.md §4.4).
func ReadJSONL(r io.Reader) ([]crdt.Change[string, json.RawMessage], error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var out []crdt.Change[string, json.RawMessage]
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		rec.HasValue = len(rec.Value) > 0
		out = append(out, rec.ToChange())
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("wire: read jsonl: %w", err)
	}
	return out, nil
}

// WriteYAML writes a batch of changes as a single YAML document: a
// list of wire Records.
func WriteYAML(w io.Writer, changes []crdt.Change[string, json.RawMessage]) error {
	records := make([]Record, 0, len(changes))
	for _, c := range changes {
		records = append(records, FromChange(c))
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("wire: encode yaml batch: %w", err)
	}
	return nil
}

// ReadYAML reads a batch of changes previously written by WriteYAML.
func ReadYAML(r io.Reader) ([]crdt.Change[string, json.RawMessage], error) {
	var records []Record
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("wire: decode yaml batch: %w", err)
	}
	out := make([]crdt.Change[string, json.RawMessage], 0, len(records))
	for _, rec := range records {
		rec.HasValue = len(rec.Value) > 0
		out = append(out, rec.ToChange())
	}
	return out, nil
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DatasetEntry is one identifier/record pair. Malformed is set when the
// source value for the identifier was not a JSON object; such entries are
// kept in place so the pipeline can report them without disturbing the
// records around them. Raw holds the source bytes of the value and is
// dropped when the record is replaced, so rewriting a dataset reproduces
// untouched entries exactly as they were read.
type DatasetEntry struct {
	ID        string
	Record    RawRecord
	Raw       json.RawMessage
	Malformed bool
}

// Dataset is an ordered collection of measurement records keyed by
// identifier. Identifier order is the insertion order of the source
// document and survives cleaning and computation, so output identifiers
// correspond 1:1, in order, to input identifiers.
type Dataset struct {
	entries []DatasetEntry
	index   map[string]int
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// Len returns the number of entries, malformed ones included.
func (d *Dataset) Len() int { return len(d.entries) }

// Entries returns the entries in insertion order. The slice is shared with
// the dataset and must not be modified.
func (d *Dataset) Entries() []DatasetEntry { return d.entries }

// Get returns the record stored under id.
func (d *Dataset) Get(id string) (RawRecord, bool) {
	pos, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return d.entries[pos].Record, true
}

// Append stores rec under id. A repeated identifier replaces the earlier
// value but keeps its original position, matching how the source documents
// treat duplicate keys.
func (d *Dataset) Append(id string, rec RawRecord) {
	d.put(DatasetEntry{ID: id, Record: rec})
}

func (d *Dataset) put(e DatasetEntry) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if pos, ok := d.index[e.ID]; ok {
		d.entries[pos] = e
		return
	}
	d.index[e.ID] = len(d.entries)
	d.entries = append(d.entries, e)
}

// UnmarshalJSON decodes a {identifier: record} document. The standard map
// decoding would lose key order, so the token stream is walked directly.
// Entries whose value is not an object are recorded as malformed rather
// than failing the whole document.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	*d = Dataset{index: make(map[string]int)}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode dataset: expected a JSON object of records, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode dataset: %w", err)
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode dataset: unexpected key token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode dataset: record %q: %w", id, err)
		}

		value := bytes.TrimSpace(raw)
		if len(value) == 0 || value[0] != '{' {
			d.put(DatasetEntry{ID: id, Raw: value, Malformed: true})
			continue
		}

		var rec RawRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode dataset: record %q: %w", id, err)
		}
		d.put(DatasetEntry{ID: id, Record: rec, Raw: value})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode dataset: %w", err)
	}
	return nil
}

// MarshalJSON encodes the dataset as a JSON object, replaying entries in
// insertion order. Entries still carrying their source bytes, malformed
// ones included, are reproduced verbatim.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		value := any(e.Record)
		if e.Raw != nil {
			value = e.Raw
		}
		if err := writeOrderedMember(&buf, e.ID, value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeOrderedMember appends one `"key": value` member to buf.
func writeOrderedMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

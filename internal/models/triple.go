package models

import "bytes"

// Triple holds the three derived power quantities for one record: real
// power p, reactive power q and apparent power s. Either all three are set
// or none is, never a partial triple. The zero value is the "unavailable"
// result and marshals as {"p":null,"q":null,"s":null}.
type Triple struct {
	P *float64 `json:"p"`
	Q *float64 `json:"q"`
	S *float64 `json:"s"`
}

// NewTriple returns an available triple carrying the given quantities.
func NewTriple(p, q, s float64) Triple {
	return Triple{P: &p, Q: &q, S: &s}
}

// Available reports whether the triple carries computed values.
func (t Triple) Available() bool {
	return t.P != nil && t.Q != nil && t.S != nil
}

// ResultEntry pairs a record identifier with its derived power triple.
type ResultEntry struct {
	ID    string
	Power Triple
}

// ResultSet is the ordered output dataset: one power triple per
// successfully resolved input identifier, in input order.
type ResultSet struct {
	entries []ResultEntry
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Len returns the number of results.
func (rs *ResultSet) Len() int { return len(rs.entries) }

// Entries returns the results in input order. The slice is shared with the
// result set and must not be modified.
func (rs *ResultSet) Entries() []ResultEntry { return rs.entries }

// Append adds the triple computed for id.
func (rs *ResultSet) Append(id string, t Triple) {
	rs.entries = append(rs.entries, ResultEntry{ID: id, Power: t})
}

// MarshalJSON encodes the result set as a JSON object in input order.
func (rs *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range rs.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeOrderedMember(&buf, e.ID, e.Power); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetPreservesOrder(t *testing.T) {
	doc := `{"zeta": {"v": 1}, "alpha": {"v": 2}, "mid": {"v": 3}}`

	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(doc), &ds))
	require.Equal(t, 3, ds.Len())

	entries := ds.Entries()
	assert.Equal(t, "zeta", entries[0].ID)
	assert.Equal(t, "alpha", entries[1].ID)
	assert.Equal(t, "mid", entries[2].ID)

	out, err := json.Marshal(&ds)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":{"v":1},"alpha":{"v":2},"mid":{"v":3}}`, string(out))
}

func TestDatasetMarksMalformedEntries(t *testing.T) {
	doc := `{"ok": {"v": 1}, "num": 42, "str": "oops", "arr": [1, 2], "null": null}`

	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(doc), &ds))
	require.Equal(t, 5, ds.Len())

	for i, want := range []bool{false, true, true, true, true} {
		assert.Equal(t, want, ds.Entries()[i].Malformed, "entry %d", i)
	}
}

func TestDatasetRewritesMalformedVerbatim(t *testing.T) {
	doc := `{"bad": 42, "ok": {"v": 1}}`

	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(doc), &ds))

	out, err := json.Marshal(&ds)
	require.NoError(t, err)
	assert.Equal(t, `{"bad":42,"ok":{"v":1}}`, string(out))
}

func TestDatasetReplacedRecordMarshalsCanonically(t *testing.T) {
	doc := `{"load": {"Volts": 120, "extra": true}}`

	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(doc), &ds))

	ds.Append("load", RawRecord{KeyVoltage: 120.0, KeyCurrent: 10.0})

	out, err := json.Marshal(&ds)
	require.NoError(t, err)
	assert.Equal(t, `{"load":{"current":10,"voltage":120}}`, string(out))
}

func TestDatasetDuplicateIdentifierKeepsPosition(t *testing.T) {
	doc := `{"a": {"v": 1}, "b": {"v": 2}, "a": {"v": 3}}`

	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(doc), &ds))
	require.Equal(t, 2, ds.Len())

	entries := ds.Entries()
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, RawRecord{"v": 3.0}, entries[0].Record)
	assert.Equal(t, "b", entries[1].ID)
}

func TestDatasetGetAndAppend(t *testing.T) {
	ds := NewDataset()
	_, ok := ds.Get("missing")
	assert.False(t, ok)

	ds.Append("load", RawRecord{"v": 120.0})
	rec, ok := ds.Get("load")
	require.True(t, ok)
	assert.Equal(t, RawRecord{"v": 120.0}, rec)

	ds.Append("load", RawRecord{"v": 230.0})
	assert.Equal(t, 1, ds.Len())
	rec, _ = ds.Get("load")
	assert.Equal(t, RawRecord{"v": 230.0}, rec)
}

func TestDatasetRejectsNonObjectDocument(t *testing.T) {
	for name, doc := range map[string]string{
		"array":  `[1, 2]`,
		"number": `42`,
		"string": `"records"`,
	} {
		t.Run(name, func(t *testing.T) {
			var ds Dataset
			assert.Error(t, json.Unmarshal([]byte(doc), &ds))
		})
	}
}

func TestDatasetEmptyDocument(t *testing.T) {
	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(`{}`), &ds))
	assert.Equal(t, 0, ds.Len())

	out, err := json.Marshal(&ds)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

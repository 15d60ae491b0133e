package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = []PhaseRow{
	{FitID: "a", Sample: "s1", Library: "clays", Mode: "fps", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Rwp: 0.05, PhaseID: "QUA", Name: "Quartz", RIR: 3.4, Coefficient: 170, Concentration: 50},
	{FitID: "a", Sample: "s1", Library: "clays", Mode: "afps", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Rwp: 0.05, PhaseID: "CAL", Name: "Calcite", RIR: 2, Concentration: 0.01, Reason: "below-lod"},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "fit_id", records[0][0])
	assert.Equal(t, "2025-03-01T12:00:00Z", records[1][4])
	assert.Equal(t, "3.4", records[1][8])
	assert.Equal(t, "below-lod", records[2][11])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, rows))
	var got []PhaseRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, rows, got)
}

package xrd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadLibrary builds a library from an intensity matrix and a metadata table.
//
// The matrix is comma-separated with a header row; its first column is the
// shared 2θ axis and every further column is one reference pattern headed by
// its identifier. The metadata table has a header naming id, name and rir
// columns in any order. Rows are joined by identifier and every metadata row
// must match exactly one pattern column (and vice versa).
func ReadLibrary(name string, patterns, phases io.Reader) (*Library, error) {
	axis, ids, columns, err := readPatternMatrix(patterns)
	if err != nil {
		return nil, fmt.Errorf("library %s patterns: %w", name, err)
	}

	meta, err := readPhaseTable(phases)
	if err != nil {
		return nil, fmt.Errorf("library %s phases: %w", name, err)
	}

	if len(meta) != len(ids) {
		return nil, fmt.Errorf("library %s: %w (%d metadata rows, %d pattern columns)", name, ErrPatternCount, len(meta), len(ids))
	}

	byID := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("library %s patterns: %w: %s", name, ErrDuplicatePhase, id)
		}
		byID[id] = i
	}

	// Library order follows the metadata table
	ordered := make([][]float64, len(meta))
	for i, p := range meta {
		col, ok := byID[p.ID]
		if !ok {
			return nil, fmt.Errorf("library %s: metadata row %s has no pattern column: %w", name, p.ID, ErrUnknownPhase)
		}
		ordered[i] = columns[col]
	}

	return NewLibrary(name, axis, ordered, meta)
}

// ReadLibraryFiles reads a library from a pattern matrix file and a metadata file
func ReadLibraryFiles(name, patternsPath, phasesPath string) (*Library, error) {
	pf, err := os.Open(patternsPath)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	mf, err := os.Open(phasesPath)
	if err != nil {
		return nil, err
	}
	defer mf.Close()

	return ReadLibrary(name, pf, mf)
}

// WriteLibrary writes the library in the two-table layout read by ReadLibrary
func WriteLibrary(patterns, phases io.Writer, lib *Library) error {
	pw := csv.NewWriter(patterns)
	header := append([]string{"tth"}, lib.IDs()...)
	if err := pw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(lib.Phases)+1)
	for i, tth := range lib.TwoTheta {
		row[0] = strconv.FormatFloat(tth, 'f', -1, 64)
		for j := range lib.Patterns {
			row[j+1] = strconv.FormatFloat(lib.Patterns[j][i], 'f', -1, 64)
		}
		if err := pw.Write(row); err != nil {
			return err
		}
	}
	pw.Flush()
	if err := pw.Error(); err != nil {
		return err
	}

	mw := csv.NewWriter(phases)
	if err := mw.Write([]string{"id", "name", "rir"}); err != nil {
		return err
	}
	for _, p := range lib.Phases {
		if err := mw.Write([]string{p.ID, p.Name, strconv.FormatFloat(p.RIR, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	mw.Flush()
	return mw.Error()
}

func readPatternMatrix(r io.Reader) ([]float64, []string, [][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 3 {
		return nil, nil, nil, errors.New("pattern matrix needs a header row and at least two data rows")
	}

	header := records[0]
	if len(header) < 2 {
		return nil, nil, nil, errors.New("pattern matrix needs an angle column and at least one reference column")
	}
	ids := make([]string, len(header)-1)
	for i := range ids {
		ids[i] = strings.TrimSpace(header[i+1])
		if ids[i] == "" {
			return nil, nil, nil, fmt.Errorf("pattern column %d has no identifier", i+2)
		}
	}

	axis := make([]float64, 0, len(records)-1)
	columns := make([][]float64, len(ids))
	for row, rec := range records[1:] {
		values, err := parseRow(rec)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("row %d: %w", row+2, err)
		}
		axis = append(axis, values[0])
		for i := range columns {
			columns[i] = append(columns[i], values[i+1])
		}
	}
	return axis, ids, columns, nil
}

func readPhaseTable(r io.Reader) ([]Phase, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("phase table needs a header row and at least one phase")
	}

	idCol, nameCol, rirCol := -1, -1, -1
	for i, h := range records[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id", "phase_id", "ref", "reference":
			idCol = i
		case "name", "phase_name", "phase":
			nameCol = i
		case "rir":
			rirCol = i
		}
	}
	if idCol < 0 || nameCol < 0 || rirCol < 0 {
		return nil, fmt.Errorf("phase table header must name id, name and rir columns, got %v", records[0])
	}

	phases := make([]Phase, 0, len(records)-1)
	for row, rec := range records[1:] {
		rir, err := strconv.ParseFloat(strings.TrimSpace(rec[rirCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d rir: %w", row+2, err)
		}
		phases = append(phases, Phase{
			ID:   strings.TrimSpace(rec[idCol]),
			Name: strings.TrimSpace(rec[nameCol]),
			RIR:  rir,
		})
	}
	return phases, nil
}

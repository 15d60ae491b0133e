package xrd

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadXY parses a two-column ASCII pattern (2θ, counts). Columns may be
// separated by whitespace, commas or semicolons. Comment lines and any
// non-numeric header lines before the first data row are skipped.
func ReadXY(r io.Reader, name string) (*Diffractogram, error) {
	d := &Diffractogram{Name: name}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isComment(line) {
			continue
		}

		fields := splitFields(line)
		if len(fields) < 2 {
			if len(d.TwoTheta) == 0 {
				continue
			}
			return nil, fmt.Errorf("%s line %d: expected two columns, got %q", name, lineNo, line)
		}

		tth, errA := strconv.ParseFloat(fields[0], 64)
		counts, errB := strconv.ParseFloat(fields[1], 64)
		if errA != nil || errB != nil {
			if len(d.TwoTheta) == 0 {
				// Header line
				continue
			}
			return nil, fmt.Errorf("%s line %d: could not parse %q", name, lineNo, line)
		}

		d.TwoTheta = append(d.TwoTheta, tth)
		d.Counts = append(d.Counts, counts)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ReadXYFile reads a two-column pattern from disk, naming it after the file
func ReadXYFile(path string) (*Diffractogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadXY(f, SampleName(path))
}

// SampleName derives a sample name from a file path
func SampleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WriteXY writes a pattern as space-separated two-column ASCII
func WriteXY(w io.Writer, d *Diffractogram) error {
	bw := bufio.NewWriter(w)
	for i := range d.TwoTheta {
		if _, err := fmt.Fprintf(bw, "%s %s\n",
			strconv.FormatFloat(d.TwoTheta[i], 'f', -1, 64),
			strconv.FormatFloat(d.Counts[i], 'f', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadMultiSample parses a comma-separated table whose first column is the
// shared 2θ axis and whose remaining columns are per-sample intensities. A
// header row, when present, supplies sample names.
func ReadMultiSample(r io.Reader) ([]*Diffractogram, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sample table: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("sample table is empty")
	}

	width := len(records[0])
	if width < 2 {
		return nil, errors.New("sample table needs an angle column and at least one sample column")
	}

	names := make([]string, width-1)
	for i := range names {
		names[i] = fmt.Sprintf("sample_%d", i+1)
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
		for i := 1; i < width; i++ {
			if n := strings.TrimSpace(records[0][i]); n != "" {
				names[i-1] = n
			}
		}
		records = records[1:]
	}

	samples := make([]*Diffractogram, width-1)
	for i := range samples {
		samples[i] = &Diffractogram{Name: names[i]}
	}

	var axis []float64
	for row, rec := range records {
		values, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("sample table row %d: %w", row+1, err)
		}
		axis = append(axis, values[0])
		for i := range samples {
			samples[i].Counts = append(samples[i].Counts, values[i+1])
		}
	}

	for _, s := range samples {
		s.TwoTheta = append([]float64(nil), axis...)
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

// WriteMultiSample writes samples sharing one axis in the layout read by ReadMultiSample
func WriteMultiSample(w io.Writer, samples []*Diffractogram) error {
	if len(samples) == 0 {
		return errors.New("no samples to write")
	}
	axis := samples[0].TwoTheta
	for _, s := range samples[1:] {
		if !AxesEqual(axis, s.TwoTheta) {
			return fmt.Errorf("%s: %w", s.label(), ErrLengthMismatch)
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"tth"}
	for _, s := range samples {
		header = append(header, s.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(samples)+1)
	for i, tth := range axis {
		row[0] = strconv.FormatFloat(tth, 'f', -1, 64)
		for j, s := range samples {
			row[j+1] = strconv.FormatFloat(s.Counts[i], 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseRow(rec []string) ([]float64, error) {
	values := make([]float64, len(rec))
	for i, field := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}

func isComment(line string) bool {
	for _, prefix := range []string{"#", "!", ";", "//"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';'
	})
}

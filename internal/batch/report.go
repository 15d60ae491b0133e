package batch

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteSummary writes one CSV row per sample: the fit statistics, the total
// and a column per phase (or phase group when grouped is set). Phases that a
// sample did not report are left empty. Failed samples carry their error.
func WriteSummary(w io.Writer, outcomes []Outcome, grouped bool) error {
	var columns []string
	seen := map[string]bool{}
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		for _, name := range phaseColumns(o, grouped) {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}

	cw := csv.NewWriter(w)
	header := append([]string{"sample", "rwp", "r", "delta", "correlation", "total"}, columns...)
	header = append(header, "error")
	if err := cw.Write(header); err != nil {
		return err
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, o := range outcomes {
		row := make([]string, len(header))
		row[0] = o.Sample
		if o.Err != nil {
			row[len(row)-1] = o.Err.Error()
		}
		if o.Result != nil {
			res := o.Result
			row[1], row[2], row[3], row[4] = format(res.Rwp), format(res.R), format(res.Delta), format(res.Correlation)
			row[5] = format(res.Total())

			values := map[string]float64{}
			if grouped {
				for _, g := range res.Grouped {
					values[g.Name] = g.Concentration
				}
			} else {
				for _, p := range res.Phases {
					values[p.ID] = p.Concentration
				}
			}
			for i, c := range columns {
				if v, ok := values[c]; ok {
					row[6+i] = format(v)
				}
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func phaseColumns(o Outcome, grouped bool) []string {
	var names []string
	if grouped {
		for _, g := range o.Result.Grouped {
			names = append(names, g.Name)
		}
		return names
	}
	for _, p := range o.Result.Phases {
		names = append(names, p.ID)
	}
	return names
}

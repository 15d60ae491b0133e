package restserver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chrissnell/xrdquant/internal/fps"
)

// queryOptions overlays fit options given as query parameters on base.
// List parameters take comma-separated values and may be repeated.
func queryOptions(q url.Values, base fps.AutoOptions) (fps.AutoOptions, error) {
	opts := base
	var err error

	if v, ok := queryList(q, "refs"); ok {
		opts.Refs = v
	}
	if v, ok := queryList(q, "force"); ok {
		opts.Force = v
	}
	if v, ok := queryList(q, "amorphous"); ok {
		opts.Amorphous = v
	}
	if q.Has("std") {
		opts.Standard = q.Get("std")
	}
	if q.Has("solver") {
		opts.Solver = fps.Solver(q.Get("solver"))
	}
	if q.Has("objective") {
		opts.Objective = fps.Objective(q.Get("objective"))
	}

	floats := map[string]*float64{
		"std_conc":      &opts.StandardConc,
		"align":         &opts.Align,
		"shift":         &opts.Shift,
		"lod":           &opts.LOD,
		"amorphous_lod": &opts.AmorphousLOD,
	}
	for key, dst := range floats {
		if !q.Has(key) {
			continue
		}
		if *dst, err = strconv.ParseFloat(q.Get(key), 64); err != nil {
			return opts, fmt.Errorf("invalid %s %q", key, q.Get(key))
		}
	}

	bools := map[string]*bool{
		"harmonise": &opts.Harmonise,
		"closed":    &opts.Closed,
		"omit_std":  &opts.OmitStandard,
		"signed":    &opts.Signed,
	}
	for key, dst := range bools {
		if !q.Has(key) {
			continue
		}
		if *dst, err = strconv.ParseBool(q.Get(key)); err != nil {
			return opts, fmt.Errorf("invalid %s %q", key, q.Get(key))
		}
	}

	if q.Has("max_iter") {
		if opts.MaxIter, err = strconv.Atoi(q.Get("max_iter")); err != nil {
			return opts, fmt.Errorf("invalid max_iter %q", q.Get("max_iter"))
		}
	}
	return opts, nil
}

func queryList(q url.Values, key string) ([]string, bool) {
	values, ok := q[key]
	if !ok {
		return nil, false
	}
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out, true
}

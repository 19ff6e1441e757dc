package detect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseManual parses a comma-separated list of interior timestamps such as
// "0, 8.5, 15.2". A leading 0 is dropped since the start is implicit.
func ParseManual(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("timestamp %q: %w", f, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("timestamp %q: negative", f)
		}
		out = append(out, v)
	}
	if len(out) > 0 && out[0] == 0 {
		out = out[1:]
	}
	return out, nil
}

// FromManual builds switch points from user supplied interior timestamps,
// bypassing silence detection. Extra timestamps are ignored and missing ones
// collapse onto the end.
func FromManual(interior []float64, total float64, n int) (Result, error) {
	if n < 1 || total <= 0 {
		return Result{}, fmt.Errorf("%w: n=%d total=%.3f", ErrDegenerateInput, n, total)
	}
	pts := append([]float64(nil), interior...)
	sort.Float64s(pts)
	if len(pts) > n-1 {
		pts = pts[:n-1]
	}
	return Result{Points: assemble(pts, total, n), Tier: TierManual}, nil
}

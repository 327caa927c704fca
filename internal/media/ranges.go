package media

// Range is a contiguous interval of buffered media time.
type Range struct {
	Start float64
	End   float64
}

// Contains reports whether pos lies within the range, bounds inclusive.
func (r Range) Contains(pos float64) bool {
	return pos >= r.Start && pos <= r.End
}

// Ranges is an ordered, non-overlapping set of buffered intervals as
// reported by a media sink. A value is a read-only snapshot; the sink may
// report different ranges on the next query.
type Ranges []Range

// Contains reports whether pos lies inside any buffered interval.
func (rs Ranges) Contains(pos float64) bool {
	for _, r := range rs {
		if r.Contains(pos) {
			return true
		}
	}
	return false
}

// End returns the end of the last buffered interval, or 0 when nothing is
// buffered yet.
func (rs Ranges) End() float64 {
	if len(rs) == 0 {
		return 0
	}
	return rs[len(rs)-1].End
}

// NextStartAfter returns the smallest range start strictly ahead of pos.
// The second return is false when no buffered interval starts beyond pos.
func (rs Ranges) NextStartAfter(pos float64) (float64, bool) {
	found := false
	var best float64
	for _, r := range rs {
		if r.Start > pos && (!found || r.Start < best) {
			best = r.Start
			found = true
		}
	}
	return best, found
}

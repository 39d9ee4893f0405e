package booking

import "fmt"

// Interval is a half-open hour range [Start, End).
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func Span(startHour, durationHours int) Interval {
	return Interval{Start: startHour, End: startHour + durationHours}
}

// Overlaps is the single overlap test used for slots and packages alike:
// [a,b) and [c,d) overlap iff a < d and c < b.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Hours() int { return i.End - i.Start }

func (i Interval) String() string { return fmt.Sprintf("[%02d:00,%02d:00)", i.Start, i.End) }

func overlapsAny(i Interval, others []Interval) bool {
	for _, o := range others {
		if i.Overlaps(o) {
			return true
		}
	}
	return false
}

// bookedCells turns one-hour booked start hours into intervals.
func bookedCells(hours []int) []Interval {
	out := make([]Interval, 0, len(hours))
	for _, h := range hours {
		out = append(out, Span(h, 1))
	}
	return out
}

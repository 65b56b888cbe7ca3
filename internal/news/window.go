package news

import "time"

// Window admits records that are recent enough while the clock, read in a
// fixed zone, is inside the active hours.
type Window struct {
	Lookback  time.Duration
	StartHour int // inclusive
	EndHour   int // exclusive
	Location  *time.Location
	Now       func() time.Time
}

func (w Window) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Active reports whether t falls inside [StartHour, EndHour) in Location.
func (w Window) Active(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	h := t.In(loc).Hour()
	return h >= w.StartHour && h < w.EndHour
}

// Recent reports whether published is strictly after now - Lookback.
func (w Window) Recent(published, now time.Time) bool {
	return published.After(now.Add(-w.Lookback))
}

// Filter keeps the records passing both gates. The clock is read once so the
// whole batch is judged against the same instant.
func (w Window) Filter(records []Record) []Record {
	now := w.now()
	if !w.Active(now) {
		return nil
	}
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if w.Recent(r.PublishedAt, now) {
			kept = append(kept, r)
		}
	}
	return kept
}

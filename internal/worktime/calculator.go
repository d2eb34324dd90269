package worktime

import "time"

type interval struct {
	start time.Time
	end   time.Time
}

// intersect returns the overlap of a and b and whether it has positive length.
func intersect(a, b interval) (interval, bool) {
	lo := a.start
	if b.start.After(lo) {
		lo = b.start
	}
	hi := a.end
	if b.end.Before(hi) {
		hi = b.end
	}
	if !hi.After(lo) {
		return interval{}, false
	}
	return interval{start: lo, end: hi}, true
}

func (i interval) length() time.Duration {
	return i.end.Sub(i.start)
}

// NetMinutes returns the whole working minutes between start and end: time
// inside the work window of working days, minus breaks. It returns 0 when
// start is after end. Partial minutes are summed before flooring.
func NetMinutes(start, end time.Time, s Settings) int {
	if !end.After(start) {
		return 0
	}
	loc := s.location()
	span := interval{start: start.In(loc), end: end.In(loc)}

	var total time.Duration
	lastDay := startOfDay(span.end, loc)
	for day := startOfDay(span.start, loc); !day.After(lastDay); day = nextDay(day, loc) {
		if !s.isWorkDay(day.Weekday()) {
			continue
		}
		worked, ok := intersect(span, interval{start: s.WorkStart.on(day, loc), end: s.WorkEnd.on(day, loc)})
		if !ok {
			continue
		}
		total += worked.length()
		if !s.HasBreak() {
			continue
		}
		if overlap, ok := intersect(worked, interval{start: s.BreakStart.on(day, loc), end: s.BreakEnd.on(day, loc)}); ok {
			total -= overlap.length()
		}
	}
	return int(total / time.Minute)
}

// AddWorkingMinutes returns the instant reached after spending minutes of
// working time starting at from. Zero minutes from inside a work window
// returns from; from outside a window it returns the next window start.
// Settings without any working time yield the zero time.
func AddWorkingMinutes(from time.Time, minutes int, s Settings) time.Time {
	if s.Validate() != nil || len(s.WorkDays) == 0 || s.dailyCapacity() <= 0 {
		return time.Time{}
	}
	if minutes < 0 {
		minutes = 0
	}
	loc := s.location()
	cursor := from.In(loc)
	remaining := time.Duration(minutes) * time.Minute

	for day := startOfDay(cursor, loc); ; day = nextDay(day, loc) {
		if !s.isWorkDay(day.Weekday()) {
			continue
		}
		for _, segment := range s.segments(day, loc) {
			if !segment.end.After(cursor) {
				continue
			}
			lo := segment.start
			if cursor.After(lo) {
				lo = cursor
			}
			available := segment.end.Sub(lo)
			if remaining <= available {
				return lo.Add(remaining)
			}
			remaining -= available
			cursor = segment.end
		}
	}
}

// segments splits the work window of day around the break.
func (s Settings) segments(day time.Time, loc *time.Location) []interval {
	window := interval{start: s.WorkStart.on(day, loc), end: s.WorkEnd.on(day, loc)}
	if !s.HasBreak() {
		return []interval{window}
	}
	brk, ok := intersect(window, interval{start: s.BreakStart.on(day, loc), end: s.BreakEnd.on(day, loc)})
	if !ok {
		return []interval{window}
	}
	out := make([]interval, 0, 2)
	if brk.start.After(window.start) {
		out = append(out, interval{start: window.start, end: brk.start})
	}
	if window.end.After(brk.end) {
		out = append(out, interval{start: brk.end, end: window.end})
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func nextDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

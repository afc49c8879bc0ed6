package domain

import (
	"slices"
	"time"
)

// Fetch interval bounds, in days.
const (
	MinFetchInterval     = 1
	MaxFetchInterval     = 28
	DefaultFetchInterval = 7

	// Missed cycles after which the effective interval doubles.
	doubleIntervalAfter = 10

	// Number of most recent chapters considered when estimating the interval.
	intervalSampleSize = 50
)

// FetchRange is the window in which a manga's next update is considered
// scheduled. Both bounds are inclusive.
type FetchRange struct {
	Start time.Time
	End   time.Time
}

// NewFetchRange builds the window around the start of now's day.
// followingDays extends it into the past, leadingDays into the future.
func NewFetchRange(now time.Time, followingDays, leadingDays int) FetchRange {
	today := startOfDay(now)
	return FetchRange{
		Start: today.AddDate(0, 0, -followingDays),
		End:   today.AddDate(0, 0, leadingDays).Add(-time.Millisecond),
	}
}

// Contains reports whether t falls inside the range, tolerating one
// millisecond past End.
func (r FetchRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End.Add(time.Millisecond))
}

// CalculateInterval estimates how many days pass between chapter releases.
// Upload dates are preferred; fetch dates are the fallback. The result is
// clamped to [MinFetchInterval, MaxFetchInterval].
func CalculateInterval(chapters []Chapter, now time.Time) int {
	sorted := slices.Clone(chapters)
	slices.SortStableFunc(sorted, func(a, b Chapter) int {
		if c := b.DateUpload.Compare(a.DateUpload); c != 0 {
			return c
		}
		return b.DateFetch.Compare(a.DateFetch)
	})
	if len(sorted) > intervalSampleSize {
		sorted = sorted[:intervalSampleSize]
	}

	loc := now.Location()
	uploadDays := distinctDays(sorted, loc, func(c Chapter) time.Time { return c.DateUpload })
	fetchDays := distinctDays(sorted, loc, func(c Chapter) time.Time { return c.DateFetch })

	interval := DefaultFetchInterval
	switch {
	case len(uploadDays) >= 3:
		interval = averageGap(uploadDays)
	case len(fetchDays) >= 3:
		interval = averageGap(fetchDays)
	}
	return max(MinFetchInterval, min(interval, MaxFetchInterval))
}

// NextUpdate returns when the manga should next be polled. A scheduled date
// already inside rng is kept unless the manga has no interval yet.
func NextUpdate(m *Manga, interval int, now time.Time, rng FetchRange) time.Time {
	if rng.Contains(m.NextUpdate) && m.FetchInterval != 0 {
		return m.NextUpdate
	}

	lastUpdate := m.LastUpdate
	if lastUpdate.IsZero() {
		// Never updated counts from the Unix epoch, as stored timestamps do.
		lastUpdate = time.UnixMilli(0)
	}
	latest := startOfDay(lastUpdate.In(now.Location()))
	sinceLatest := daysBetween(latest, now)

	if interval == 0 {
		interval = DefaultFetchInterval
	}
	step := absInt(interval)
	cycleLen := step
	if interval > 0 {
		cycleLen = doubleInterval(interval, sinceLatest, doubleIntervalAfter, MaxFetchInterval)
	}
	cycle := floorDiv(sinceLatest, cycleLen)
	return latest.AddDate(0, 0, (cycle+1)*step)
}

// UpdateFetchInterval recomputes the manga's schedule from its chapters.
// A negative FetchInterval is a user-pinned value and is kept as is.
// changed reports whether either value differs from the manga's current state.
func UpdateFetchInterval(m *Manga, chapters []Chapter, now time.Time, rng FetchRange) (next time.Time, interval int, changed bool) {
	interval = m.FetchInterval
	if interval >= 0 {
		interval = CalculateInterval(chapters, now)
	}
	next = NextUpdate(m, interval, now, rng)
	changed = !next.Equal(m.NextUpdate) || interval != m.FetchInterval
	return next, interval, changed
}

// doubleInterval doubles delta while more than doubleWhenOver cycles have
// been missed since the latest chapter.
func doubleInterval(delta, sinceLatest, doubleWhenOver, maxValue int) int {
	for delta < maxValue {
		if floorDiv(sinceLatest, delta)+1 <= doubleWhenOver {
			return delta
		}
		delta *= 2
	}
	return maxValue
}

// distinctDays returns the distinct days of the picked timestamps, newest first.
func distinctDays(chapters []Chapter, loc *time.Location, pick func(Chapter) time.Time) []time.Time {
	var days []time.Time
	for _, c := range chapters {
		t := pick(c)
		if t.IsZero() {
			continue
		}
		day := startOfDay(t.In(loc))
		if !slices.ContainsFunc(days, day.Equal) {
			days = append(days, day)
		}
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	return days
}

// averageGap expects days sorted newest first.
func averageGap(days []time.Time) int {
	span := daysBetween(days[len(days)-1], days[0])
	return floorDiv(span, len(days)-1)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

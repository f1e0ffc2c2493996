package periods

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultTimezone is the reference timezone for every time-of-day in the
// period dictionary, regardless of where a given context runs.
const DefaultTimezone = "America/New_York"

// timeOfDayPattern accepts H:MM, H:MM:SS, and either with an am/pm marker.
var timeOfDayPattern = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([APap][Mm])?`)

// ParseTimeOfDay converts a dictionary time string to minutes since midnight.
// Seconds are ignored; 12am maps to 0 and 12pm to 720. ok is false when the
// string does not contain a time-of-day at all.
func ParseTimeOfDay(s string) (int, bool) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if ampm := m[4]; ampm != "" {
		isPM := strings.ContainsAny(ampm, "pP")
		if isPM && hours < 12 {
			hours += 12
		}
		if !isPM && hours == 12 {
			hours = 0
		}
	}
	if hours > 23 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// MinuteOfDay returns t's minutes since midnight in t's own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// NextOccurrence returns the next absolute instant at which the wall clock in
// now's location reads minuteOfDay: today if still strictly in the future,
// otherwise tomorrow.
func NextOccurrence(now time.Time, minuteOfDay int) time.Time {
	target := time.Date(
		now.Year(), now.Month(), now.Day(),
		minuteOfDay/60, minuteOfDay%60, 0, 0,
		now.Location(),
	)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// nextMidnight returns the instant shortly after the next local midnight. The
// margin keeps a rearm pass from computing "today's" occurrences while the
// clock still reads 23:59:59.999.
func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 5, 0, now.Location()).AddDate(0, 0, 1)
}

// ReferenceClock resolves "now" in the fixed reference timezone no matter
// what the host's local timezone is.
type ReferenceClock struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewReferenceClock builds a clock for tz, falling back to UTC when the
// timezone database has no such name.
func NewReferenceClock(clock clockwork.Clock, tz string) *ReferenceClock {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn().Err(err).Str("tz", tz).Msg("unknown reference timezone, using UTC")
		loc = time.UTC
	}
	return &ReferenceClock{clock: clock, loc: loc}
}

// Now returns the current instant expressed in the reference timezone.
func (r *ReferenceClock) Now() time.Time {
	return r.clock.Now().In(r.loc)
}

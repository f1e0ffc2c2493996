package periods

import "time"

// Period is a named recurring time-of-day interval, independent of calendar
// date. Start and End are dictionary time strings; End before Start denotes a
// span crossing midnight.
type Period struct {
	Code  string
	Label string
	Start string
	End   string
}

// DisplayLabel is the label announced to users, falling back to the code.
func (p Period) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Code
}

// DetectActive returns the period whose interval contains now, or nil.
// Midnight-crossing intervals (end < start) are active when now is at or
// after start or at or before end. Overlaps resolve to the first period in
// list order; periods with unparsable times are skipped.
func DetectActive(periods []Period, now time.Time) *Period {
	nowMinutes := MinuteOfDay(now)
	for i := range periods {
		p := &periods[i]
		startMinutes, ok := ParseTimeOfDay(p.Start)
		if !ok {
			continue
		}
		endMinutes, ok := ParseTimeOfDay(p.End)
		if !ok {
			continue
		}
		if endMinutes < startMinutes {
			if nowMinutes >= startMinutes || nowMinutes <= endMinutes {
				return p
			}
		} else if nowMinutes >= startMinutes && nowMinutes <= endMinutes {
			return p
		}
	}
	return nil
}

package emit

import "time"

// Precision records how much of an absolute date fragment the user
// supplied, which determines the implicit width of the resulting interval.
type Precision int

const (
	PrecisionYear Precision = iota
	PrecisionMonth
	PrecisionDay
	PrecisionHour
	PrecisionMinute
	PrecisionSecond
)

// Width returns the implicit interval width for a given precision, per the
// table in the date-folding spec: a bare year is a 365-day window, adding a
// month narrows it to 30 days, adding a day to 7 days, and each additional
// time component narrows it to that component's own unit.
func (p Precision) Width() time.Duration {
	switch p {
	case PrecisionYear:
		return 365 * 24 * time.Hour
	case PrecisionMonth:
		return 30 * 24 * time.Hour
	case PrecisionDay:
		return 7 * 24 * time.Hour
	case PrecisionHour:
		return 24 * time.Hour
	case PrecisionMinute:
		return 60 * time.Minute
	case PrecisionSecond:
		return 1 * time.Second
	default:
		return 0
	}
}

// RelativeMultipliers maps the RelativeDateMultiplier words (singular and
// plural) to their multiplier in seconds. The month entry reproduces the
// documented 7×30-day bug (60·60·24·7·30 = 18,144,000 seconds, ≈210 days)
// rather than the "correct" 30-day month; this is deliberate, not a defect
// to be fixed here.
var RelativeMultipliers = map[string]int64{
	"minute":  60,
	"minutes": 60,
	"hour":    3600,
	"hours":   3600,
	"day":     86400,
	"days":    86400,
	"week":    604800,
	"weeks":   604800,
	"month":   60 * 60 * 24 * 7 * 30,
	"months":  60 * 60 * 24 * 7 * 30,
	"year":    60 * 60 * 24 * 365,
	"years":   60 * 60 * 24 * 365,
}

// FoldRelativeDate computes the [lower, upper) instant interval for a
// relative date expression "amount multiplier direction" captured against
// now. direction is +1 for "from now" and -1 for "ago" (and any other
// direction word, per the grammar). With delta = amount * direction *
// multiplierSeconds:
//
//	lower = now + (delta + multiplierSeconds)
//	upper = now + delta
//
// So "1 day ago" yields the interval starting 2 days ago and ending 1 day
// ago — the whole day labeled "1 day ago".
func FoldRelativeDate(now time.Time, amount, multiplierSeconds, direction int64) (lower, upper time.Time) {
	delta := amount * direction * multiplierSeconds
	lower = now.Add(time.Duration(delta+multiplierSeconds) * time.Second)
	upper = now.Add(time.Duration(delta) * time.Second)
	return lower, upper
}

// FoldAbsoluteDate computes the [lower, upper) instant interval for a
// (possibly truncated) absolute date fragment. Missing month/day default to
// 1, missing hour/minute/second default to 0 by the time this is called;
// precision determines the window width per Precision.Width.
func FoldAbsoluteDate(year, month, day, hour, minute, second int, precision Precision, loc *time.Location) (lower, upper time.Time) {
	lower = time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	upper = lower.Add(precision.Width())
	return lower, upper
}

// dateLayout renders an instant the way the emitted JSON expects: a numeric
// UTC offset ("+00:00"), never the "Z" shorthand RFC3339 allows.
const dateLayout = "2006-01-02T15:04:05-07:00"

// FormatInstant renders t in the compiler's canonical date-string form.
func FormatInstant(t time.Time) string {
	return t.Format(dateLayout)
}

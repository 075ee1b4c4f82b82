package core

// DateRange is an inclusive [Start, End] window of calendar dates.
type DateRange struct {
	Start Date
	End   Date
}

// Contains reports whether d falls inside the window, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Months returns the whole calendar months spanned by the window.
func (r DateRange) Months() int {
	return r.Start.MonthsBetween(r.End)
}

// ExtraDays returns the days left over after the whole months.
func (r DateRange) ExtraDays() int {
	return r.Start.AddMonths(r.Months()).DaysBetween(r.End)
}

// NormalizeWindow resolves optional bounds into a validated DateRange.
//
// Missing bounds default to a three month window: with no bounds the window
// ends today, with only one bound the other is three months away from it.
// The resolved window, defaulted or not, must satisfy start <= end and span
// at most three whole months with no remainder. Month-end clamping can make
// a defaulted window fail: no start with end May 31 resolves to Feb 28, which
// is three months and three days.
func NormalizeWindow(start, end *Date, clock Clock) (DateRange, error) {
	var rng DateRange
	switch {
	case start == nil && end == nil:
		rng.End = Today(clock)
		rng.Start = rng.End.AddMonths(-DefaultWindowMonths)
	case start == nil:
		rng.End = *end
		rng.Start = rng.End.AddMonths(-DefaultWindowMonths)
	case end == nil:
		rng.Start = *start
		rng.End = rng.Start.AddMonths(DefaultWindowMonths)
	default:
		rng.Start, rng.End = *start, *end
	}

	if rng.Start.After(rng.End) {
		return DateRange{}, NewValidationError(MsgStartAfterEnd)
	}

	months := rng.Months()
	if months > MaxWindowMonths || (months == MaxWindowMonths && rng.ExtraDays() > 0) {
		return DateRange{}, NewValidationError(MsgRangeTooLong)
	}

	return rng, nil
}

package leaderboard

import (
	"fmt"
	"time"
)

// LeaderboardOptions configures a Leaderboard instance.
type LeaderboardOptions struct {
	// SortPolicy is the global ranking direction.
	SortPolicy SortPolicy

	// UpdatePolicy is the default per-write mutation semantics, used when
	// Update/UpdateOne is called without an explicit override.
	UpdatePolicy UpdatePolicy

	// LimitTopN caps the number of members retained after any update
	// completes. Zero or negative means unlimited.
	LimitTopN int32
}

// DefaultLeaderboardOptions returns HIGH_TO_LOW/REPLACE/unlimited options,
// the same defaults the teacher's LeaderboardCache assumed implicitly.
func DefaultLeaderboardOptions() LeaderboardOptions {
	return LeaderboardOptions{
		SortPolicy:   HighToLow,
		UpdatePolicy: Replace,
		LimitTopN:    0,
	}
}

// WithSortPolicy returns a copy of o with SortPolicy set.
func (o LeaderboardOptions) WithSortPolicy(p SortPolicy) LeaderboardOptions {
	o.SortPolicy = p
	return o
}

// WithUpdatePolicy returns a copy of o with UpdatePolicy set.
func (o LeaderboardOptions) WithUpdatePolicy(p UpdatePolicy) LeaderboardOptions {
	o.UpdatePolicy = p
	return o
}

// WithLimitTopN returns a copy of o with LimitTopN set.
func (o LeaderboardOptions) WithLimitTopN(n int32) LeaderboardOptions {
	o.LimitTopN = n
	return o
}

// ══════════════════════════════════════════════════════════════════════════
// CYCLE SPEC
// ══════════════════════════════════════════════════════════════════════════

// CycleTag names one of the predefined cycle granularities.
type CycleTag int

const (
	// Minute cycles key by year-month-day-hour-minute.
	Minute CycleTag = iota
	// Hourly cycles key by year-month-day-hour.
	Hourly
	// Daily cycles key by year-month-day.
	Daily
	// Weekly cycles key by ISO-8601 week-of-week-based-year.
	Weekly
	// Monthly cycles key by year-month.
	Monthly
	// Yearly cycles key by year.
	Yearly
	// customTag marks a CycleSpec built from a user function; it is not
	// exported because CustomCycle is the only valid constructor.
	customTag
)

// CycleFunc maps a civil datetime to a cycle key string.
type CycleFunc func(t time.Time) string

// CycleSpec is either a predefined tag or a user-supplied function mapping a
// civil datetime to a cycle key. It is resolved once, at PeriodicLeaderboard
// construction, into a fixed CycleFunc (§9's "clean design" note).
type CycleSpec struct {
	tag CycleTag
	fn  CycleFunc
}

// PredefinedCycle builds a CycleSpec from one of the known tags.
func PredefinedCycle(tag CycleTag) CycleSpec {
	return CycleSpec{tag: tag}
}

// CustomCycle builds a CycleSpec from a user function.
func CustomCycle(fn CycleFunc) CycleSpec {
	return CycleSpec{tag: customTag, fn: fn}
}

// resolve turns the CycleSpec into a fixed CycleFunc, or returns
// ErrInvalidCycle if the spec names neither a known tag nor a function.
func (c CycleSpec) resolve() (CycleFunc, error) {
	if c.tag == customTag {
		if c.fn == nil {
			return nil, ErrInvalidCycle
		}
		return c.fn, nil
	}

	switch c.tag {
	case Minute:
		return func(t time.Time) string {
			return fmt.Sprintf("y%04d-m%02d-d%02d-h%02d-m%02d",
				t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
		}, nil
	case Hourly:
		return func(t time.Time) string {
			return fmt.Sprintf("y%04d-m%02d-d%02d-h%02d",
				t.Year(), int(t.Month()), t.Day(), t.Hour())
		}, nil
	case Daily:
		return func(t time.Time) string {
			return fmt.Sprintf("y%04d-m%02d-d%02d", t.Year(), int(t.Month()), t.Day())
		}, nil
	case Weekly:
		return func(t time.Time) string {
			_, week := t.ISOWeek()
			return fmt.Sprintf("w%04d", week)
		}, nil
	case Monthly:
		return func(t time.Time) string {
			return fmt.Sprintf("y%04d-m%02d", t.Year(), int(t.Month()))
		}, nil
	case Yearly:
		return func(t time.Time) string {
			return fmt.Sprintf("y%04d", t.Year())
		}, nil
	default:
		return nil, ErrInvalidCycle
	}
}

// ClockFunc returns the current civil datetime. Injectable for tests.
type ClockFunc func() time.Time

// PeriodicOptions configures a PeriodicLeaderboard.
type PeriodicOptions struct {
	// LeaderboardOptions is passed through to every per-cycle Leaderboard.
	LeaderboardOptions LeaderboardOptions

	// Cycle selects the cycle-key function.
	Cycle CycleSpec

	// Now supplies the current time; defaults to time.Now if nil.
	Now ClockFunc
}

// DefaultPeriodicOptions returns DAILY cycling with default leaderboard
// options and the system clock.
func DefaultPeriodicOptions() PeriodicOptions {
	return PeriodicOptions{
		LeaderboardOptions: DefaultLeaderboardOptions(),
		Cycle:              PredefinedCycle(Daily),
		Now:                nil,
	}
}

func (o PeriodicOptions) clock() ClockFunc {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

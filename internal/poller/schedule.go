package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule fires at minute 1, 6, 11, ..., 56 of every hour.
const DefaultSchedule = "1-59/5 * * * *"

// DefaultTimezone is the zone used for alignment and report timestamps.
const DefaultTimezone = "America/New_York"

// Schedule computes wall-clock aligned poll times.
type Schedule struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
}

// ParseSchedule accepts a standard 5-field cron expression or a descriptor
// ("@hourly"), optionally prefixed with "cron:". A nil loc means UTC.
func ParseSchedule(raw string, loc *time.Location) (*Schedule, error) {
	spec := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(spec), "cron:") {
		spec = strings.TrimSpace(spec[len("cron:"):])
	}
	if spec == "" {
		return nil, fmt.Errorf("schedule required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q (use cron like '1-59/5 * * * *'): %w", raw, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Schedule{spec: spec, sched: sched, loc: loc}, nil
}

// MustSchedule is ParseSchedule for compile-time constants.
func MustSchedule(raw string, loc *time.Location) *Schedule {
	s, err := ParseSchedule(raw, loc)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schedule) String() string { return s.spec }

func (s *Schedule) Location() *time.Location { return s.loc }

// Next returns the first slot strictly after now, expressed in the schedule's zone.
func (s *Schedule) Next(now time.Time) time.Time {
	return s.sched.Next(now.In(s.loc))
}

// LoadLocation resolves a zone name, falling back to DefaultTimezone and then UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// NextAlignedPollTime is the default schedule's next slot after now, in now's zone.
func NextAlignedPollTime(now time.Time) time.Time {
	return MustSchedule(DefaultSchedule, now.Location()).Next(now)
}

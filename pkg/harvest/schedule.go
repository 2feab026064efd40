/*
Copyright 2023 The Netharvest Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package harvest

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides when the events of a recurring harvest definition happen.
// A schedule is either timed (a standard 5-field cron expression) or
// interval-based (a fixed duration between events). Both kinds may carry
// optional start/end bounds and a maximum number of repeats.
type Schedule struct {
	Name string `json:"name"`
	// CronSpec is a standard cron expression; mutually exclusive with
	// Interval.
	CronSpec string `json:"cronSpec,omitempty"`
	// Interval is the fixed duration between events; mutually exclusive
	// with CronSpec.
	Interval time.Duration `json:"interval,omitempty"`
	// StartTime is the earliest possible event, zero means immediately.
	StartTime time.Time `json:"startTime,omitempty"`
	// EndTime is the latest possible event, zero means no end.
	EndTime time.Time `json:"endTime,omitempty"`
	// MaxRepeats caps the number of events, zero means unlimited.
	MaxRepeats int `json:"maxRepeats,omitempty"`
	Comments   string `json:"comments,omitempty"`
}

// NewCronSchedule returns a timed schedule firing per the given standard
// cron expression.
func NewCronSchedule(name, spec string) (*Schedule, error) {
	s := &Schedule{Name: name, CronSpec: spec}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewIntervalSchedule returns a schedule firing every given interval,
// starting immediately.
func NewIntervalSchedule(name string, every time.Duration) (*Schedule, error) {
	s := &Schedule{Name: name, Interval: every}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schedule definition is usable.
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schedule name must not be empty")
	}
	if (s.CronSpec == "") == (s.Interval == 0) {
		return fmt.Errorf("schedule %q must define exactly one of cronSpec and interval", s.Name)
	}
	if s.Interval < 0 {
		return fmt.Errorf("schedule %q has negative interval", s.Name)
	}
	if s.MaxRepeats < 0 {
		return fmt.Errorf("schedule %q has negative maxRepeats", s.Name)
	}
	if s.CronSpec != "" {
		if _, err := cron.ParseStandard(s.CronSpec); err != nil {
			return fmt.Errorf("schedule %q has invalid cron expression %q: %w", s.Name, s.CronSpec, err)
		}
	}
	return nil
}

// FirstEvent returns the first event at or after the given time, honoring
// the start bound. The zero time is returned when the schedule can never
// fire again (past its end).
func (s *Schedule) FirstEvent(after time.Time) time.Time {
	base := after
	if !s.StartTime.IsZero() && base.Before(s.StartTime) {
		base = s.StartTime
	}
	var first time.Time
	if s.CronSpec != "" {
		sched, err := cron.ParseStandard(s.CronSpec)
		if err != nil {
			return time.Time{}
		}
		// cron Next is strictly after its argument; allow an event
		// exactly at base.
		first = sched.Next(base.Add(-time.Nanosecond))
	} else {
		// interval schedules fire immediately at their start
		first = base
	}
	if !s.EndTime.IsZero() && first.After(s.EndTime) {
		return time.Time{}
	}
	return first
}

// NextEvent returns the event following last, given that eventsAlready
// events have happened. The zero time is returned when the schedule is
// exhausted, either by maxRepeats or its end bound.
func (s *Schedule) NextEvent(last time.Time, eventsAlready int) time.Time {
	if last.IsZero() {
		return time.Time{}
	}
	if s.MaxRepeats > 0 && eventsAlready >= s.MaxRepeats {
		return time.Time{}
	}
	var next time.Time
	if s.CronSpec != "" {
		sched, err := cron.ParseStandard(s.CronSpec)
		if err != nil {
			return time.Time{}
		}
		next = sched.Next(last)
	} else {
		next = last.Add(s.Interval)
	}
	if !s.EndTime.IsZero() && next.After(s.EndTime) {
		return time.Time{}
	}
	return next
}

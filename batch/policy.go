// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/horodocs/horodocs/config"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

// Period is a part of the week with its own sealing interval.
type Period int

// Periods of the week.
const (
	WorkdayDay Period = iota
	WorkdayNight
	Weekend
)

// ConfigKey returns the name of the setting holding the period's interval in
// minutes.
func (p Period) ConfigKey() string {
	switch p {
	case WorkdayDay:
		return "day_config"
	case WorkdayNight:
		return "night_config"
	case Weekend:
		return "weekend_config"
	}
	return fmt.Sprintf("period_%d_config", int(p))
}

func (p Period) String() string {
	switch p {
	case WorkdayDay:
		return "workday-day"
	case WorkdayNight:
		return "workday-night"
	case Weekend:
		return "weekend"
	}
	return fmt.Sprintf("Period(%d)", int(p))
}

// Policy decides how long the scheduler waits before the next seal.
type Policy struct {
	// Location is the time zone the working hours are expressed in.
	Location *time.Location
	// WorkdayStart and WorkdayEnd bound the working hours: a workday hour h
	// is daytime iff WorkdayStart <= h < WorkdayEnd.
	WorkdayStart int
	WorkdayEnd   int
	// WeekendDays are the days using the weekend interval.
	WeekendDays []time.Weekday
	// Fallback is used when the configuration store has no usable value.
	Fallback map[Period]time.Duration
	// DefaultInterval is used when neither the store nor Fallback knows the
	// period.
	DefaultInterval time.Duration
}

// DefaultPolicy returns the policy used without a policy file: working
// hours 07:00 to 18:00, Monday to Friday, in loc.
func DefaultPolicy(loc *time.Location) *Policy {
	return &Policy{
		Location:        loc,
		WorkdayStart:    7,
		WorkdayEnd:      18,
		WeekendDays:     []time.Weekday{time.Saturday, time.Sunday},
		DefaultInterval: 10 * time.Minute,
	}
}

// PeriodAt classifies t.
func (p *Policy) PeriodAt(t time.Time) Period {
	if p.Location != nil {
		t = t.In(p.Location)
	}
	for _, d := range p.WeekendDays {
		if t.Weekday() == d {
			return Weekend
		}
	}
	if h := t.Hour(); h >= p.WorkdayStart && h < p.WorkdayEnd {
		return WorkdayDay
	}
	return WorkdayNight
}

// Interval returns the pause to apply at time t. Store lookups that fail, or
// hold a non-positive number of minutes, fall back to the policy's own
// values.
func (p *Policy) Interval(ctx context.Context, store config.Store, t time.Time) time.Duration {
	period := p.PeriodAt(t)
	if store != nil {
		minutes, err := store.Lookup(ctx, period.ConfigKey())
		switch {
		case err == nil && minutes > 0:
			return time.Duration(minutes) * time.Minute
		case err == nil:
			klog.Warningf("Ignoring %s=%d: interval must be positive", period.ConfigKey(), minutes)
		case errors.Is(err, config.ErrNotFound):
			klog.V(1).Infof("No %s setting, using fallback", period.ConfigKey())
		default:
			klog.Warningf("Reading %s: %v", period.ConfigKey(), err)
		}
	}
	if d, ok := p.Fallback[period]; ok && d > 0 {
		return d
	}
	if p.DefaultInterval > 0 {
		return p.DefaultInterval
	}
	return 10 * time.Minute
}

// policyFile is the YAML form of a Policy.
type policyFile struct {
	Location     string   `yaml:"location"`
	WorkdayStart *int     `yaml:"workday_start"`
	WorkdayEnd   *int     `yaml:"workday_end"`
	WeekendDays  []string `yaml:"weekend_days"`
	// Intervals are in minutes, keyed by config key.
	Intervals       map[string]int64 `yaml:"intervals"`
	DefaultInterval int64            `yaml:"default_interval"`
}

// ParsePolicy reads a YAML policy. Unset fields keep their DefaultPolicy
// values; the location falls back to loc, or UTC if loc is nil.
func ParsePolicy(b []byte, loc *time.Location) (*Policy, error) {
	var f policyFile
	if err := yaml.UnmarshalStrict(b, &f); err != nil {
		return nil, fmt.Errorf("parsing schedule policy: %v", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if f.Location != "" {
		var err error
		if loc, err = time.LoadLocation(f.Location); err != nil {
			return nil, fmt.Errorf("schedule policy location: %v", err)
		}
	}
	p := DefaultPolicy(loc)
	if f.WorkdayStart != nil {
		p.WorkdayStart = *f.WorkdayStart
	}
	if f.WorkdayEnd != nil {
		p.WorkdayEnd = *f.WorkdayEnd
	}
	if p.WorkdayStart < 0 || p.WorkdayEnd > 24 || p.WorkdayStart > p.WorkdayEnd {
		return nil, fmt.Errorf("schedule policy: bad working hours %d-%d", p.WorkdayStart, p.WorkdayEnd)
	}
	if f.WeekendDays != nil {
		p.WeekendDays = nil
		for _, name := range f.WeekendDays {
			d, err := parseWeekday(name)
			if err != nil {
				return nil, err
			}
			p.WeekendDays = append(p.WeekendDays, d)
		}
	}
	if f.DefaultInterval > 0 {
		p.DefaultInterval = time.Duration(f.DefaultInterval) * time.Minute
	}
	p.Fallback = make(map[Period]time.Duration)
	for key, minutes := range f.Intervals {
		period, ok := periodForKey(key)
		if !ok {
			return nil, fmt.Errorf("schedule policy: unknown interval %q", key)
		}
		if minutes <= 0 {
			return nil, fmt.Errorf("schedule policy: interval %q must be positive", key)
		}
		p.Fallback[period] = time.Duration(minutes) * time.Minute
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file. See ParsePolicy for loc.
func LoadPolicy(path string, loc *time.Location) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicy(b, loc)
}

func periodForKey(key string) (Period, bool) {
	for _, p := range []Period{WorkdayDay, WorkdayNight, Weekend} {
		if p.ConfigKey() == key {
			return p, true
		}
	}
	return 0, false
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name || d.String()[:3] == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("schedule policy: unknown weekday %q", name)
}

// IsIntervalKey reports whether key names one of the interval settings.
func IsIntervalKey(key string) bool {
	_, ok := periodForKey(key)
	return ok
}

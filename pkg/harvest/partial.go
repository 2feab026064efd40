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

	"go.uber.org/zap"

	"github.com/netharvest/netharvest/pkg/config"
)

// ConfigKey identifies a domain configuration inside a harvest definition.
// Entries of a definition are unique on this key.
type ConfigKey struct {
	DomainName string `json:"domainName"`
	ConfigName string `json:"configName"`
}

func (k ConfigKey) String() string {
	return k.DomainName + "/" + k.ConfigName
}

// KeyOf returns the key of a configuration.
func KeyOf(cfg *DomainConfiguration) ConfigKey {
	return ConfigKey{DomainName: cfg.DomainName, ConfigName: cfg.Name}
}

// PartialHarvest is a selective or event harvest definition: a set of
// domain configurations harvested on a recurring schedule. Snapshot
// harvests are a different definition kind and are out of scope here.
type PartialHarvest struct {
	Name     string
	Comments string
	Schedule *Schedule
	// NextDate is when the definition should run next; zero means never
	// again.
	NextDate time.Time
	// NumEvents counts how many times the definition has spawned jobs.
	NumEvents int
	Active    bool

	configs map[ConfigKey]*DomainConfiguration
}

// NewPartialHarvest creates an active definition whose first event is the
// schedule's first event at or after now.
func NewPartialHarvest(name, comments string, schedule *Schedule, configs []*DomainConfiguration, now time.Time) (*PartialHarvest, error) {
	if name == "" {
		return nil, fmt.Errorf("harvest definition name must not be empty")
	}
	if schedule == nil {
		return nil, fmt.Errorf("harvest definition %q needs a schedule", name)
	}
	h := &PartialHarvest{
		Name:     name,
		Comments: comments,
		Schedule: schedule,
		Active:   true,
		configs:  map[ConfigKey]*DomainConfiguration{},
	}
	for _, cfg := range configs {
		h.configs[KeyOf(cfg)] = cfg
	}
	h.NextDate = schedule.FirstEvent(now)
	return h, nil
}

// Configurations returns the member configurations, unordered.
func (h *PartialHarvest) Configurations() []*DomainConfiguration {
	out := make([]*DomainConfiguration, 0, len(h.configs))
	for _, cfg := range h.configs {
		out = append(out, cfg)
	}
	return out
}

// ConfigurationKeys returns the member keys, unordered.
func (h *PartialHarvest) ConfigurationKeys() []ConfigKey {
	out := make([]ConfigKey, 0, len(h.configs))
	for k := range h.configs {
		out = append(out, k)
	}
	return out
}

// AddConfiguration adds a configuration; adding an existing key is an
// error.
func (h *PartialHarvest) AddConfiguration(cfg *DomainConfiguration) error {
	key := KeyOf(cfg)
	if _, ok := h.configs[key]; ok {
		return fmt.Errorf("configuration %s already part of harvest definition %q", key, h.Name)
	}
	h.configs[key] = cfg
	return nil
}

// PutConfiguration adds or replaces a configuration.
func (h *PartialHarvest) PutConfiguration(cfg *DomainConfiguration) {
	h.configs[KeyOf(cfg)] = cfg
}

// RemoveConfiguration removes a configuration by key.
func (h *PartialHarvest) RemoveConfiguration(key ConfigKey) error {
	if _, ok := h.configs[key]; !ok {
		return fmt.Errorf("configuration %s not part of harvest definition %q", key, h.Name)
	}
	delete(h.configs, key)
	return nil
}

// SetSchedule replaces the schedule and recomputes the next event from the
// current one.
func (h *PartialHarvest) SetSchedule(schedule *Schedule) {
	h.Schedule = schedule
	if !h.NextDate.IsZero() {
		h.NextDate = schedule.FirstEvent(h.NextDate)
	}
}

// Reset rewinds the definition to no events run and the first possible
// event from now.
func (h *PartialHarvest) Reset(now time.Time) {
	h.NumEvents = 0
	h.NextDate = h.Schedule.FirstEvent(now)
}

// RunNow reports whether the definition is due at the given time. Inactive
// definitions are never due.
func (h *PartialHarvest) RunNow(now time.Time) bool {
	if !h.Active {
		return false
	}
	return !h.NextDate.IsZero() && !now.Before(h.NextDate)
}

// CreateJobs generates the jobs for one event of this definition and
// advances the schedule. Events that would land in the past are skipped,
// never scheduled: after this call NextDate is zero or >= now.
func (h *PartialHarvest) CreateJobs(now time.Time, limits JobLimits, s *config.Settings, log *zap.SugaredLogger) []*Job {
	jobs := GenerateJobs(h.Name, h.NumEvents, h.Configurations(), limits, s)
	h.NumEvents++

	next := h.Schedule.NextEvent(h.NextDate, h.NumEvents)
	if !next.IsZero() && next.Before(now) {
		eventsSkipped := 0
		for !next.IsZero() && next.Before(now) {
			next = h.Schedule.NextEvent(next, h.NumEvents)
			eventsSkipped++
		}
		log.Warnf("Refusing to schedule harvest definition %q in the past, skipped %d events, old next date was %v, new next date is %v",
			h.Name, eventsSkipped, h.NextDate, next)
	}
	h.NextDate = next
	if next.IsZero() {
		log.Debugf("Harvest definition %q will never run again", h.Name)
	} else {
		log.Debugf("Next event for harvest definition %q happens %v", h.Name, next)
	}
	return jobs
}

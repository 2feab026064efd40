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
	"context"
	"sync"
	"time"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// JobPublisher hands generated jobs to the harvesters, typically over a
// message channel.
type JobPublisher interface {
	PublishJob(ctx context.Context, job *Job) error
}

// Scheduler periodically runs due harvest definitions: it generates their
// jobs, publishes them, and advances their schedules.
type Scheduler struct {
	store *Store
	pub   JobPublisher

	mu       sync.RWMutex
	settings *config.Settings
	limits   JobLimits
}

func NewScheduler(store *Store, pub JobPublisher, settings *config.Settings) *Scheduler {
	return &Scheduler{
		store:    store,
		pub:      pub,
		settings: settings,
		limits:   LimitsFromSettings(settings),
	}
}

// UpdateSettings swaps in freshly loaded settings. Ticks started after the
// swap size their jobs by the new limits; a tick already running finishes
// with the limits it started with.
func (s *Scheduler) UpdateSettings(settings *config.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.limits = LimitsFromSettings(settings)
}

func (s *Scheduler) current() (*config.Settings, JobLimits) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.limits
}

// Start runs the tick loop until the context is done.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	settings, _ := s.current()
	tick := settings.SchedulerTick
	if tick <= 0 {
		tick = time.Minute
	}
	log.Infof("Harvest scheduler started, ticking every %v", tick)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Harvest scheduler stopped")
			return nil
		case now := <-ticker.C:
			if _, err := s.Tick(ctx, now); err != nil {
				log.Errorw("Scheduler tick failed", "err", err)
			}
		}
	}
}

// Tick runs all definitions due at the given time and returns the number
// of jobs generated.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	log := logging.FromContext(ctx)
	settings, limits := s.current()
	due := s.store.DueDefinitions(now)
	jobsMade := 0
	var firstErr error
	for _, h := range due {
		metrics.DefinitionsDue.Inc()
		jobs := h.CreateJobs(now, limits, settings, log)
		for _, job := range jobs {
			if err := s.pub.PublishJob(ctx, job); err != nil {
				log.Errorw("Failed to publish job", "job", job.ID, "definition", h.Name, "err", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			jobsMade++
			metrics.JobsGenerated.WithLabelValues(h.Name).Inc()
		}
		if err := s.store.PutDefinition(h); err != nil {
			log.Errorw("Failed to persist definition", "definition", h.Name, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		log.Infow("Ran harvest definition", "definition", h.Name, "jobs", len(jobs), "nextDate", h.NextDate)
	}
	return jobsMade, firstErr
}

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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/netharvest/netharvest/pkg/shared/logging"
)

type capturingPublisher struct {
	jobs []*Job
	err  error
}

func (p *capturingPublisher) PublishJob(_ context.Context, job *Job) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
}

func TestSchedulerTick(t *testing.T) {
	st := NewStore("")
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHarvest(t, "weekly", time.Hour, now.Add(-time.Minute))
	require.NoError(t, st.PutDefinition(h))

	pub := &capturingPublisher{}
	sched := NewScheduler(st, pub, testSettings(t))

	n, err := sched.Tick(testCtx(t), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "weekly", pub.jobs[0].HarvestName)
	assert.False(t, h.NextDate.Before(now), "definition advanced past now")

	// nothing is due immediately after
	n, err = sched.Tick(testCtx(t), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.jobs, 1)
}

func TestSchedulerTickNothingDue(t *testing.T) {
	st := NewStore("")
	pub := &capturingPublisher{}
	sched := NewScheduler(st, pub, testSettings(t))

	n, err := sched.Tick(testCtx(t), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerTickPublishError(t *testing.T) {
	st := NewStore("")
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHarvest(t, "weekly", time.Hour, now.Add(-time.Minute))
	require.NoError(t, st.PutDefinition(h))

	pub := &capturingPublisher{err: fmt.Errorf("broker gone")}
	sched := NewScheduler(st, pub, testSettings(t))

	n, err := sched.Tick(testCtx(t), now)
	assert.Error(t, err)
	assert.Zero(t, n)
	// the schedule still advances so a flaky broker cannot wedge a
	// definition into rerunning the same event forever
	assert.False(t, h.NextDate.Before(now))
}

func TestSchedulerUpdateSettings(t *testing.T) {
	st := NewStore("")
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	sched, err := NewIntervalSchedule("weekly-schedule", time.Hour)
	require.NoError(t, err)
	configs := []*DomainConfiguration{
		testConfig(t, "example.com"),
		testConfig(t, "example.org"),
		testConfig(t, "example.net"),
	}
	h, err := NewPartialHarvest("weekly", "", sched, configs, now.Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, st.PutDefinition(h))

	pub := &capturingPublisher{}
	s := NewScheduler(st, pub, testSettings(t))

	// reload with a job budget of one domain expectation, forcing one job
	// per configuration
	smaller := testSettings(t)
	smaller.MaxTotalJobSize = smaller.MaxDomainSize
	s.UpdateSettings(smaller)

	n, err := s.Tick(testCtx(t), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "packing follows the updated budget")
	assert.Len(t, pub.jobs, 3)
	for _, job := range pub.jobs {
		assert.Len(t, job.ConfigNames, 1)
	}
}

func TestSchedulerStartStops(t *testing.T) {
	st := NewStore("")
	sched := NewScheduler(st, &capturingPublisher{}, testSettings(t))

	ctx, cancel := context.WithCancel(testCtx(t))
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}

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
	"sort"

	"github.com/google/uuid"

	"github.com/netharvest/netharvest/pkg/config"
)

// JobLimits bound how domain configurations are packed into crawl jobs.
type JobLimits struct {
	// MaxTotalObjects is the upper limit on the summed expected object
	// count of one job.
	MaxTotalObjects int64
	// MaxRelativeSizeDifference is the largest allowed ratio between the
	// biggest and smallest expected configuration in one job.
	MaxRelativeSizeDifference int64
	// MinAbsoluteSizeDifference: differences below this are ignored even
	// when the relative difference is exceeded.
	MinAbsoluteSizeDifference int64
}

// LimitsFromSettings derives the job packing limits from the settings.
func LimitsFromSettings(s *config.Settings) JobLimits {
	return JobLimits{
		MaxTotalObjects:           s.MaxTotalJobSize,
		MaxRelativeSizeDifference: s.MaxRelativeSizeDifference,
		MinAbsoluteSizeDifference: s.MinAbsoluteSizeDifference,
	}
}

// Job is one unit of crawl work handed to a harvester: a set of domain
// configurations sharing a template and compatible size expectations.
type Job struct {
	ID           string `json:"id"`
	HarvestName  string `json:"harvestName"`
	HarvestNum   int    `json:"harvestNum"`
	TemplateName string `json:"templateName"`
	// MaxObjectsPerDomain/MaxBytesPerDomain are the limits all member
	// configurations share.
	MaxObjectsPerDomain int64 `json:"maxObjectsPerDomain"`
	MaxBytesPerDomain   int64 `json:"maxBytesPerDomain"`
	// ConfigNames maps domain name to the member configuration name.
	ConfigNames map[string]string `json:"configNames"`
	// ExpectedTotalObjects is the summed projection for the whole job.
	ExpectedTotalObjects int64 `json:"expectedTotalObjects"`

	limits      JobLimits
	expectedMin int64
	expectedMax int64
}

// newJob starts a job seeded with one configuration.
func newJob(harvestName string, harvestNum int, cfg *DomainConfiguration, expectation int64, limits JobLimits) *Job {
	return &Job{
		ID:                   uuid.New().String(),
		HarvestName:          harvestName,
		HarvestNum:           harvestNum,
		TemplateName:         cfg.TemplateName,
		MaxObjectsPerDomain:  cfg.MaxObjects,
		MaxBytesPerDomain:    cfg.MaxBytes,
		ConfigNames:          map[string]string{cfg.DomainName: cfg.Name},
		ExpectedTotalObjects: expectation,
		limits:               limits,
		expectedMin:          expectation,
		expectedMax:          expectation,
	}
}

// CanAccept reports whether the configuration fits into this job: same
// template and per-domain limits, one configuration per domain, total
// budget not exceeded, and an expected size not too far from the other
// members.
func (j *Job) CanAccept(cfg *DomainConfiguration, expectation int64) bool {
	if cfg.TemplateName != j.TemplateName {
		return false
	}
	if cfg.MaxObjects != j.MaxObjectsPerDomain || cfg.MaxBytes != j.MaxBytesPerDomain {
		return false
	}
	if _, ok := j.ConfigNames[cfg.DomainName]; ok {
		return false
	}
	if j.limits.MaxTotalObjects > 0 && j.ExpectedTotalObjects+expectation > j.limits.MaxTotalObjects {
		return false
	}
	newMin := min64(j.expectedMin, expectation)
	newMax := j.expectedMax
	if expectation > newMax {
		newMax = expectation
	}
	if j.limits.MaxRelativeSizeDifference > 0 && newMax-newMin > j.limits.MinAbsoluteSizeDifference {
		floor := newMin
		if floor < 1 {
			floor = 1
		}
		if newMax/floor > j.limits.MaxRelativeSizeDifference {
			return false
		}
	}
	return true
}

// add appends a configuration the job already accepted.
func (j *Job) add(cfg *DomainConfiguration, expectation int64) {
	j.ConfigNames[cfg.DomainName] = cfg.Name
	j.ExpectedTotalObjects += expectation
	if expectation < j.expectedMin {
		j.expectedMin = expectation
	}
	if expectation > j.expectedMax {
		j.expectedMax = expectation
	}
}

// GenerateJobs packs the configurations into as few jobs as the limits
// allow. Configurations are grouped by template and per-domain limits, then
// filled greedily in descending expectation order so that outliers start
// their own jobs.
func GenerateJobs(harvestName string, harvestNum int, configs []*DomainConfiguration, limits JobLimits, s *config.Settings) []*Job {
	ordered := make([]*DomainConfiguration, len(configs))
	copy(ordered, configs)

	expectations := make(map[*DomainConfiguration]int64, len(ordered))
	for _, cfg := range ordered {
		expectations[cfg] = cfg.ExpectedObjectCount(UnlimitedObjects, UnlimitedBytes, s)
	}

	sort.SliceStable(ordered, func(a, b int) bool {
		ca, cb := ordered[a], ordered[b]
		if ca.TemplateName != cb.TemplateName {
			return ca.TemplateName < cb.TemplateName
		}
		if ca.MaxBytes != cb.MaxBytes {
			return ca.MaxBytes > cb.MaxBytes
		}
		if ca.MaxObjects != cb.MaxObjects {
			return ca.MaxObjects > cb.MaxObjects
		}
		return expectations[ca] > expectations[cb]
	})

	var jobs []*Job
	var current *Job
	for _, cfg := range ordered {
		expectation := expectations[cfg]
		if current != nil && current.CanAccept(cfg, expectation) {
			current.add(cfg, expectation)
			continue
		}
		current = newJob(harvestName, harvestNum, cfg, expectation, limits)
		jobs = append(jobs, current)
	}
	return jobs
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJobsPacksCompatibleConfigs(t *testing.T) {
	s := testSettings(t)
	limits := LimitsFromSettings(s)
	configs := []*DomainConfiguration{
		testConfig(t, "example.com"),
		testConfig(t, "example.org"),
	}

	jobs := GenerateJobs("weekly", 3, configs, limits, s)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, "weekly", job.HarvestName)
	assert.Equal(t, 3, job.HarvestNum)
	assert.Equal(t, testTemplateName, job.TemplateName)
	assert.Len(t, job.ConfigNames, 2)
	assert.Equal(t, DefaultConfigName, job.ConfigNames["example.com"])
	assert.Equal(t, 2*s.MaxDomainSize, job.ExpectedTotalObjects)
	assert.NotEmpty(t, job.ID)
}

func TestGenerateJobsSplitsOnTemplate(t *testing.T) {
	s := testSettings(t)
	limits := LimitsFromSettings(s)
	a := testConfig(t, "example.com")
	b := testConfig(t, "example.org")
	b.TemplateName = "aggressive_orderxml"

	jobs := GenerateJobs("weekly", 0, []*DomainConfiguration{a, b}, limits, s)
	assert.Len(t, jobs, 2)
}

func TestGenerateJobsSplitsOnPerDomainLimits(t *testing.T) {
	s := testSettings(t)
	limits := LimitsFromSettings(s)
	a := testConfig(t, "example.com")
	b := testConfig(t, "example.org")
	require.NoError(t, b.SetMaxBytes(1000000))

	jobs := GenerateJobs("weekly", 0, []*DomainConfiguration{a, b}, limits, s)
	assert.Len(t, jobs, 2)
}

func TestGenerateJobsOneConfigPerDomain(t *testing.T) {
	s := testSettings(t)
	limits := LimitsFromSettings(s)
	d := testDomain(t, "example.com")
	first, err := d.GetConfiguration(DefaultConfigName)
	require.NoError(t, err)
	second, err := NewDomainConfiguration("deep", d, testTemplateName, []string{DefaultSeedListName})
	require.NoError(t, err)

	jobs := GenerateJobs("weekly", 0, []*DomainConfiguration{first, second}, limits, s)
	assert.Len(t, jobs, 2, "two configurations of one domain never share a job")
}

func TestGenerateJobsHonorsTotalBudget(t *testing.T) {
	s := testSettings(t)
	limits := LimitsFromSettings(s)
	// each unknown domain projects to maxDomainSize, so two of them bust
	// a budget of 1.5 domains
	limits.MaxTotalObjects = s.MaxDomainSize * 3 / 2

	jobs := GenerateJobs("weekly", 0, []*DomainConfiguration{
		testConfig(t, "example.com"),
		testConfig(t, "example.org"),
	}, limits, s)
	assert.Len(t, jobs, 2)
}

func TestGenerateJobsSplitsOnRelativeSizeDifference(t *testing.T) {
	s := testSettings(t)
	now := time.Now()

	small := testDomain(t, "small.example.com")
	completedHarvest(small, now, 100, 100*s.ExpectedAverageBytesPerObject) // projects to 590
	large := testDomain(t, "large.example.org")
	completedHarvest(large, now, 4000, 4000*s.ExpectedAverageBytesPerObject) // projects to 4100

	cfgSmall, err := small.GetConfiguration(DefaultConfigName)
	require.NoError(t, err)
	cfgLarge, err := large.GetConfiguration(DefaultConfigName)
	require.NoError(t, err)
	configs := []*DomainConfiguration{cfgSmall, cfgLarge}

	limits := LimitsFromSettings(s)
	limits.MaxRelativeSizeDifference = 3
	jobs := GenerateJobs("weekly", 0, configs, limits, s)
	assert.Len(t, jobs, 2, "4100/590 exceeds a max ratio of 3")

	// small absolute differences are tolerated regardless of the ratio
	limits.MinAbsoluteSizeDifference = 4000
	jobs = GenerateJobs("weekly", 0, configs, limits, s)
	assert.Len(t, jobs, 1)
}

func TestGenerateJobsEmpty(t *testing.T) {
	s := testSettings(t)
	assert.Empty(t, GenerateJobs("weekly", 0, nil, LimitsFromSettings(s), s))
}

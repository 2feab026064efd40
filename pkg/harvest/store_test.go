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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSchedules(t *testing.T) {
	st := NewStore("")
	daily, err := NewCronSchedule("daily", "0 3 * * *")
	require.NoError(t, err)
	require.NoError(t, st.AddSchedule(daily))
	assert.Error(t, st.AddSchedule(daily), "duplicate schedule refused")
	assert.Error(t, st.AddSchedule(&Schedule{Name: "broken"}), "invalid schedule refused")

	got, err := st.GetSchedule("daily")
	require.NoError(t, err)
	assert.Equal(t, daily, got)
	_, err = st.GetSchedule("missing")
	assert.Error(t, err)
	assert.Len(t, st.ListSchedules(), 1)
}

func TestStoreTemplates(t *testing.T) {
	st := NewStore("")
	assert.Error(t, st.PutTemplate("", "<order/>"))
	require.NoError(t, st.PutTemplate("default_orderxml", "<order/>"))
	require.NoError(t, st.PutTemplate("aggressive_orderxml", "<order/>"))
	assert.True(t, st.TemplateExists("default_orderxml"))
	assert.False(t, st.TemplateExists("missing"))
	assert.Equal(t, []string{"aggressive_orderxml", "default_orderxml"}, st.ListTemplates())
}

func TestStoreDomains(t *testing.T) {
	st := NewStore("")
	d := testDomain(t, "example.com")
	require.NoError(t, st.PutDomain(d))
	assert.True(t, st.DomainExists("example.com"))

	got, err := st.GetDomain("example.com")
	require.NoError(t, err)
	assert.Equal(t, d, got)
	_, err = st.GetDomain("missing")
	assert.Error(t, err)
}

func TestAddSeeds(t *testing.T) {
	st := NewStore("")
	require.NoError(t, st.PutTemplate(testTemplateName, "<order/>"))
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newTestHarvest(t, "evharvest", time.Hour, now)

	seeds := []string{
		"www.example.com/index",
		"https://shop.example.co.uk/catalogue",
		"netarkivet.dk",
		"  ", // blank seeds are ignored
	}
	require.NoError(t, st.AddSeeds(h, seeds, testTemplateName, UnlimitedBytes, UnlimitedObjects))

	wantName := "evharvest_" + testTemplateName + "_UnlimitedBytes_UnlimitedObjects"
	for _, domainName := range []string{"example.com", "example.co.uk", "netarkivet.dk"} {
		d, err := st.GetDomain(domainName)
		require.NoError(t, err)
		assert.True(t, d.HasSeedList(wantName))
		assert.True(t, d.HasConfiguration(wantName))
	}

	d, err := st.GetDomain("example.com")
	require.NoError(t, err)
	sl, err := d.GetSeedList(wantName)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://www.example.com/index"}, sl.Seeds)

	// the new configurations became part of the definition
	assert.Contains(t, h.ConfigurationKeys(), ConfigKey{DomainName: "example.co.uk", ConfigName: wantName})
	assert.True(t, st.DefinitionExists("evharvest"))
}

func TestAddSeedsLimitsInName(t *testing.T) {
	st := NewStore("")
	require.NoError(t, st.PutTemplate(testTemplateName, "<order/>"))
	now := time.Now()
	h := newTestHarvest(t, "evharvest", time.Hour, now)

	require.NoError(t, st.AddSeeds(h, []string{"www.example.com"}, testTemplateName, 1000000, 500))

	wantName := "evharvest_" + testTemplateName + "_1000000Bytes_500Objects"
	d, err := st.GetDomain("example.com")
	require.NoError(t, err)
	cfg, err := d.GetConfiguration(wantName)
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), cfg.MaxBytes)
	assert.Equal(t, int64(500), cfg.MaxObjects)
}

func TestAddSeedsAllOrNothing(t *testing.T) {
	st := NewStore("")
	require.NoError(t, st.PutTemplate(testTemplateName, "<order/>"))
	h := newTestHarvest(t, "evharvest", time.Hour, time.Now())

	err := st.AddSeeds(h, []string{"www.example.com", "not a url at all"}, testTemplateName, UnlimitedBytes, UnlimitedObjects)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a url at all")
	assert.False(t, st.DomainExists("example.com"), "no partial application")

	assert.Error(t, st.AddSeeds(h, []string{"www.example.com"}, "missingtemplate", UnlimitedBytes, UnlimitedObjects))
}

func TestAddSeedsMergesIntoExistingList(t *testing.T) {
	st := NewStore("")
	require.NoError(t, st.PutTemplate(testTemplateName, "<order/>"))
	h := newTestHarvest(t, "evharvest", time.Hour, time.Now())

	require.NoError(t, st.AddSeeds(h, []string{"www.example.com/a"}, testTemplateName, UnlimitedBytes, UnlimitedObjects))
	require.NoError(t, st.AddSeeds(h, []string{"www.example.com/b", "www.example.com/a"}, testTemplateName, UnlimitedBytes, UnlimitedObjects))

	wantName := "evharvest_" + testTemplateName + "_UnlimitedBytes_UnlimitedObjects"
	d, err := st.GetDomain("example.com")
	require.NoError(t, err)
	sl, err := d.GetSeedList(wantName)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://www.example.com/a", "http://www.example.com/b"}, sl.Seeds)
}

func TestDueDefinitions(t *testing.T) {
	st := NewStore("")
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	due := newTestHarvest(t, "due", time.Hour, now.Add(-time.Minute))
	future := newTestHarvest(t, "future", time.Hour, now.Add(time.Hour))
	inactive := newTestHarvest(t, "inactive", time.Hour, now.Add(-time.Minute))
	inactive.Active = false
	for _, h := range []*PartialHarvest{due, future, inactive} {
		require.NoError(t, st.PutDefinition(h))
	}

	got := st.DueDefinitions(now)
	require.Len(t, got, 1)
	assert.Equal(t, "due", got[0].Name)
}

func TestSnapshotRoundtrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "definitions.json")
	st := NewStore(file)
	require.NoError(t, st.PutTemplate(testTemplateName, "<order/>"))

	daily, err := NewCronSchedule("daily", "0 3 * * *")
	require.NoError(t, err)
	require.NoError(t, st.AddSchedule(daily))

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	h, err := NewPartialHarvest("evharvest", "a test definition", daily, nil, now)
	require.NoError(t, err)
	require.NoError(t, st.AddSeeds(h, []string{"www.example.com"}, testTemplateName, UnlimitedBytes, UnlimitedObjects))

	// record some history so reattachment is observable
	wantName := "evharvest_" + testTemplateName + "_UnlimitedBytes_UnlimitedObjects"
	d, err := st.GetDomain("example.com")
	require.NoError(t, err)
	d.RecordHarvest(HarvestInfo{
		Date:                 now,
		ConfigName:           wantName,
		CountObjectRetrieved: 100,
		SizeDataRetrieved:    100 * 38000,
		StopReason:           StopReasonDownloadComplete,
	})
	require.NoError(t, st.PutDomain(d))

	_, err = os.Stat(file)
	require.NoError(t, err)

	reloaded := NewStore(file)
	require.NoError(t, reloaded.Load())

	got, err := reloaded.GetDefinition("evharvest")
	require.NoError(t, err)
	assert.Equal(t, "a test definition", got.Comments)
	assert.True(t, got.Active)
	assert.Equal(t, h.NextDate.UTC(), got.NextDate.UTC())
	assert.Same(t, mustSchedule(t, reloaded, "daily"), got.Schedule)

	require.Len(t, got.Configurations(), 1)
	cfg := got.Configurations()[0]
	require.NotNil(t, cfg.History(), "history reattached after load")
	assert.NotNil(t, cfg.History().BestExpectation(cfg.Name))
}

func mustSchedule(t *testing.T, st *Store, name string) *Schedule {
	t.Helper()
	s, err := st.GetSchedule(name)
	require.NoError(t, err)
	return s
}

func TestLoadMissingFileIsFine(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, st.Load())

	unpersisted := NewStore("")
	assert.NoError(t, unpersisted.Load())
}

func TestLoadRejectsDanglingReferences(t *testing.T) {
	file := filepath.Join(t.TempDir(), "definitions.json")
	data := `{"schedules":[],"templates":{},"domains":[],"definitions":[
		{"name":"orphan","scheduleName":"missing","nextDate":"2023-06-01T12:00:00Z","numEvents":0,"active":true,"configs":[]}
	]}`
	require.NoError(t, os.WriteFile(file, []byte(data), 0o644))

	st := NewStore(file)
	assert.Error(t, st.Load())
}

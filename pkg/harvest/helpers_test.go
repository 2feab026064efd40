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

	"github.com/stretchr/testify/require"

	"github.com/netharvest/netharvest/pkg/config"
)

const testTemplateName = "default_orderxml"

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.Load("")
	require.NoError(t, err)
	return s
}

func testDomain(t *testing.T, name string) *Domain {
	t.Helper()
	d, err := DefaultDomain(name, testTemplateName)
	require.NoError(t, err)
	return d
}

func testConfig(t *testing.T, domainName string) *DomainConfiguration {
	t.Helper()
	d := testDomain(t, domainName)
	cfg, err := d.GetConfiguration(DefaultConfigName)
	require.NoError(t, err)
	return cfg
}

// completedHarvest records a completed harvest of the domain's default
// configuration.
func completedHarvest(d *Domain, date time.Time, objects, bytes int64) {
	d.RecordHarvest(HarvestInfo{
		Date:                 date,
		HarvestName:          "previous",
		ConfigName:           DefaultConfigName,
		CountObjectRetrieved: objects,
		SizeDataRetrieved:    bytes,
		StopReason:           StopReasonDownloadComplete,
	})
}

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

	"github.com/netharvest/netharvest/pkg/config"
)

const (
	// UnlimitedObjects means no object limit on a harvest.
	UnlimitedObjects int64 = -1
	// UnlimitedBytes means no byte limit on a harvest.
	UnlimitedBytes int64 = -1

	// minObjectsToTrustSmallExpectation fallback when settings carry zero.
	defaultMinObjectsToTrust = 50
	// minBytesPerObject is the smallest accepted bytes-per-object estimate.
	minBytesPerObject int64 = 1
)

// DomainConfiguration describes one way to harvest a domain: which seed
// lists and crawler template to use, and the object/byte budget.
type DomainConfiguration struct {
	Name       string `json:"name"`
	DomainName string `json:"domainName"`
	// TemplateName names the crawler order template used by this
	// configuration.
	TemplateName string `json:"templateName"`
	// MaxObjects caps the number of objects harvested, UnlimitedObjects for
	// no cap.
	MaxObjects int64 `json:"maxObjects"`
	// MaxBytes caps the bytes downloaded, UnlimitedBytes for no cap.
	MaxBytes int64 `json:"maxBytes"`
	// MaxRequestRate caps requests per minute, 0 for the crawler default.
	MaxRequestRate int      `json:"maxRequestRate"`
	SeedListNames  []string `json:"seedListNames"`
	CrawlerTraps   []string `json:"crawlerTraps,omitempty"`
	Comments       string   `json:"comments,omitempty"`

	// history belongs to the owning domain; reattached when loading
	// snapshots.
	history *DomainHistory
}

// NewDomainConfiguration creates a configuration for the given domain using
// the named seed lists, which must exist on the domain.
func NewDomainConfiguration(name string, domain *Domain, templateName string, seedListNames []string) (*DomainConfiguration, error) {
	if name == "" {
		return nil, fmt.Errorf("configuration name must not be empty")
	}
	if len(seedListNames) == 0 {
		return nil, fmt.Errorf("configuration %q needs at least one seed list", name)
	}
	for _, sln := range seedListNames {
		if !domain.HasSeedList(sln) {
			return nil, fmt.Errorf("seed list %q not defined on domain %q", sln, domain.Name)
		}
	}
	return &DomainConfiguration{
		Name:          name,
		DomainName:    domain.Name,
		TemplateName:  templateName,
		MaxObjects:    UnlimitedObjects,
		MaxBytes:      UnlimitedBytes,
		SeedListNames: seedListNames,
		CrawlerTraps:  domain.CrawlerTraps,
		history:       domain.History,
	}, nil
}

// SetMaxObjects caps the object count; -1 means unlimited.
func (c *DomainConfiguration) SetMaxObjects(max int64) error {
	if max < UnlimitedObjects {
		return fmt.Errorf("maxObjects must be -1 or non-negative, got %d", max)
	}
	c.MaxObjects = max
	return nil
}

// SetMaxBytes caps the downloaded bytes; -1 means unlimited.
func (c *DomainConfiguration) SetMaxBytes(max int64) error {
	if max < UnlimitedBytes {
		return fmt.Errorf("maxBytes must be -1 or non-negative, got %d", max)
	}
	c.MaxBytes = max
	return nil
}

// AttachHistory ties the configuration to its domain's harvest history.
func (c *DomainConfiguration) AttachHistory(h *DomainHistory) {
	c.history = h
}

// History returns the harvest history backing this configuration's
// estimates; may be nil for configurations never attached to a domain.
func (c *DomainConfiguration) History() *DomainHistory {
	return c.history
}

// Seeds resolves the configuration's seed lists against the domain.
func (c *DomainConfiguration) Seeds(d *Domain) []string {
	var out []string
	for _, name := range c.SeedListNames {
		if sl, ok := d.SeedLists[name]; ok {
			out = append(out, sl.Seeds...)
		}
	}
	return out
}

// ExpectedObjectCount projects how many objects a harvest using this
// configuration will retrieve, under the given per-domain limits. The
// limits override the configuration's own unless unlimited. The projection
// is driven by the best historical harvest info: a completed harvest only
// grows by 1/errorFactor of the remaining headroom, anything else by half
// of it. Without history the default domain cap applies.
func (c *DomainConfiguration) ExpectedObjectCount(objectLimit, byteLimit int64, s *config.Settings) int64 {
	best := c.history.BestExpectation(c.Name)
	expectedObjectSize := c.expectedBytesPerObject(best, s)
	if expectedObjectSize < minBytesPerObject {
		expectedObjectSize = minBytesPerObject
	}

	var maximum int64
	switch {
	case objectLimit != UnlimitedObjects || byteLimit != UnlimitedBytes:
		maximum = minObjectsBytesLimit(objectLimit, byteLimit, expectedObjectSize, s.MaxDomainSize)
	case c.MaxObjects != UnlimitedObjects || c.MaxBytes != UnlimitedBytes:
		maximum = minObjectsBytesLimit(c.MaxObjects, c.MaxBytes, expectedObjectSize, s.MaxDomainSize)
	default:
		maximum = s.MaxDomainSize
	}

	var minimum int64
	if best != nil {
		minimum = best.CountObjectRetrieved
	} else {
		minimum = minInf(UnlimitedObjects, c.MaxObjects)
	}

	errorFactor := s.ErrorFactorPrevResult
	if errorFactor <= 0 {
		errorFactor = 1
	}

	var expectation int64
	if best != nil {
		if best.StopReason == StopReasonDownloadComplete && maximum != UnlimitedObjects {
			// the domain completed last time, so the projection only
			// exceeds that result by a fraction of the headroom
			expectation = minimum + (maximum-minimum)/errorFactor
		} else {
			// stopped by a limit or aborted, assume substantial growth
			expectation = minimum + (maximum-minimum)/2
		}
	} else {
		expectation = minInf(s.MaxDomainSize, c.MaxObjects)
	}

	// the configuration's own limits always bind
	if (c.MaxObjects > UnlimitedObjects && maximum > c.MaxObjects) ||
		(c.MaxBytes > UnlimitedBytes && maximum > c.MaxBytes/expectedObjectSize) {
		maximum = minObjectsBytesLimit(c.MaxObjects, c.MaxBytes, expectedObjectSize, s.MaxDomainSize)
	}
	if expectation > maximum {
		expectation = maximum
	}
	return expectation
}

// expectedBytesPerObject estimates the average object size for this domain.
// A small-sample estimate below the configured default is not trusted.
func (c *DomainConfiguration) expectedBytesPerObject(best *HarvestInfo, s *config.Settings) int64 {
	defaultExpectation := s.ExpectedAverageBytesPerObject
	minToTrust := s.MinObjectsToTrustSmallExpectation
	if minToTrust <= 0 {
		minToTrust = defaultMinObjectsToTrust
	}
	if best == nil || best.CountObjectRetrieved <= 0 {
		return defaultExpectation
	}
	expectation := best.SizeDataRetrieved / best.CountObjectRetrieved
	if expectation < minBytesPerObject {
		expectation = minBytesPerObject
	}
	if expectation < defaultExpectation && best.CountObjectRetrieved < minToTrust {
		return defaultExpectation
	}
	return expectation
}

// minObjectsBytesLimit converts a byte limit into an object limit through
// the expected object size and returns the tightest of the two, or
// maxDomainSize when both are unlimited.
func minObjectsBytesLimit(objectLimit, byteLimit, expectedObjectSize, maxDomainSize int64) int64 {
	if objectLimit != UnlimitedObjects {
		if byteLimit != UnlimitedBytes {
			return min64(objectLimit, byteLimit/expectedObjectSize)
		}
		return objectLimit
	}
	if byteLimit != UnlimitedBytes {
		return byteLimit / expectedObjectSize
	}
	return maxDomainSize
}

// minInf returns the tightest of two limits where -1 means unlimited.
func minInf(a, b int64) int64 {
	if a == UnlimitedObjects {
		return b
	}
	if b == UnlimitedObjects {
		return a
	}
	return min64(a, b)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

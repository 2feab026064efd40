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
	"time"

	"github.com/montanaflynn/stats"

	"github.com/netharvest/netharvest/pkg/shared/ewma"
)

// StopReason tells why a harvest of a domain ended.
type StopReason int

const (
	// StopReasonUnknown is used when the harvester did not report a reason.
	StopReasonUnknown StopReason = iota
	// StopReasonDownloadComplete means the domain was fully harvested.
	StopReasonDownloadComplete
	// StopReasonObjectLimit means the object limit was hit.
	StopReasonObjectLimit
	// StopReasonByteLimit means the byte limit was hit.
	StopReasonByteLimit
	// StopReasonDownloadUnfinished means the harvest was aborted.
	StopReasonDownloadUnfinished
)

func (r StopReason) String() string {
	switch r {
	case StopReasonDownloadComplete:
		return "download complete"
	case StopReasonObjectLimit:
		return "object limit reached"
	case StopReasonByteLimit:
		return "byte limit reached"
	case StopReasonDownloadUnfinished:
		return "download unfinished"
	default:
		return "unknown"
	}
}

// HarvestInfo is the outcome of one harvest of one domain configuration.
// The scheduling estimator projects future job sizes from these.
type HarvestInfo struct {
	Date                 time.Time  `json:"date"`
	HarvestName          string     `json:"harvestName"`
	JobID                string     `json:"jobID"`
	ConfigName           string     `json:"configName"`
	CountObjectRetrieved int64      `json:"countObjectRetrieved"`
	SizeDataRetrieved    int64      `json:"sizeDataRetrieved"`
	StopReason           StopReason `json:"stopReason"`
}

// BytesPerObject returns the average object size of this harvest, or 0 when
// nothing was retrieved.
func (hi *HarvestInfo) BytesPerObject() float64 {
	if hi.CountObjectRetrieved <= 0 {
		return 0
	}
	return float64(hi.SizeDataRetrieved) / float64(hi.CountObjectRetrieved)
}

// DomainHistory records past harvest outcomes of a domain, newest last.
type DomainHistory struct {
	Infos []HarvestInfo `json:"infos"`

	smoothed *ewma.SimpleEWMA
}

func NewDomainHistory() *DomainHistory {
	return &DomainHistory{}
}

// Add appends a harvest outcome and updates the smoothed bytes-per-object.
func (h *DomainHistory) Add(info HarvestInfo) {
	h.Infos = append(h.Infos, info)
	if info.CountObjectRetrieved > 0 {
		if h.smoothed == nil {
			h.smoothed = ewma.NewSimpleEWMA()
		}
		h.smoothed.Add(info.BytesPerObject())
	}
}

// SmoothedBytesPerObject returns the exponentially smoothed bytes-per-object
// over this history, 0 when no harvest retrieved anything yet.
func (h *DomainHistory) SmoothedBytesPerObject() float64 {
	if h.smoothed == nil {
		return 0
	}
	return h.smoothed.Get()
}

// BestExpectation returns the harvest info to base size projections on for
// the named configuration: the most recent completed harvest if any,
// otherwise the harvest that retrieved the most objects. Nil when the
// configuration has never been harvested.
func (h *DomainHistory) BestExpectation(configName string) *HarvestInfo {
	if h == nil {
		return nil
	}
	var newestComplete *HarvestInfo
	var largest *HarvestInfo
	for i := range h.Infos {
		info := &h.Infos[i]
		if info.ConfigName != configName {
			continue
		}
		if info.StopReason == StopReasonDownloadComplete {
			if newestComplete == nil || info.Date.After(newestComplete.Date) {
				newestComplete = info
			}
		}
		if largest == nil || info.CountObjectRetrieved > largest.CountObjectRetrieved {
			largest = info
		}
	}
	if newestComplete != nil {
		return newestComplete
	}
	return largest
}

// MostRecent returns the newest harvest info for the named configuration,
// nil when none exists.
func (h *DomainHistory) MostRecent(configName string) *HarvestInfo {
	if h == nil {
		return nil
	}
	var newest *HarvestInfo
	for i := range h.Infos {
		info := &h.Infos[i]
		if info.ConfigName != configName {
			continue
		}
		if newest == nil || info.Date.After(newest.Date) {
			newest = info
		}
	}
	return newest
}

// Summary aggregates the history for reporting.
type Summary struct {
	Harvests             int     `json:"harvests"`
	TotalObjects         int64   `json:"totalObjects"`
	TotalBytes           int64   `json:"totalBytes"`
	MeanBytesPerObject   float64 `json:"meanBytesPerObject"`
	MedianBytesPerObject float64 `json:"medianBytesPerObject"`
	P90BytesPerObject    float64 `json:"p90BytesPerObject"`
	SmoothedBytesPerObj  float64 `json:"smoothedBytesPerObject"`
}

// Summarize computes summary statistics over all harvests in the history.
func (h *DomainHistory) Summarize() Summary {
	s := Summary{Harvests: len(h.Infos), SmoothedBytesPerObj: h.SmoothedBytesPerObject()}
	var perObject []float64
	for i := range h.Infos {
		info := &h.Infos[i]
		s.TotalObjects += info.CountObjectRetrieved
		s.TotalBytes += info.SizeDataRetrieved
		if bpo := info.BytesPerObject(); bpo > 0 {
			perObject = append(perObject, bpo)
		}
	}
	if len(perObject) > 0 {
		// stats functions only fail on empty input
		s.MeanBytesPerObject, _ = stats.Mean(perObject)
		s.MedianBytesPerObject, _ = stats.Median(perObject)
		s.P90BytesPerObject, _ = stats.Percentile(perObject, 90)
	}
	return s
}

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

package distribute

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/netharvest/netharvest/pkg/harvest"
)

// JobMessage is one crawl job on the wire: everything a harvester needs to
// run it without reaching back into the registry.
type JobMessage struct {
	ID           string `json:"id"`
	HarvestName  string `json:"harvestName"`
	HarvestNum   int    `json:"harvestNum"`
	TemplateName string `json:"templateName"`
	// MaxObjectsPerDomain/MaxBytesPerDomain apply to every domain in the
	// job; -1 means unlimited.
	MaxObjectsPerDomain int64 `json:"maxObjectsPerDomain"`
	MaxBytesPerDomain   int64 `json:"maxBytesPerDomain"`
	// ConfigNames maps domain to the configuration name driving it.
	ConfigNames map[string]string `json:"configNames"`
	// Seeds maps domain to the seed URLs of its configuration.
	Seeds map[string][]string `json:"seeds,omitempty"`
}

// NewJobMessage builds the wire form of a job with its resolved seeds.
func NewJobMessage(job *harvest.Job, seeds map[string][]string) *JobMessage {
	return &JobMessage{
		ID:                  job.ID,
		HarvestName:         job.HarvestName,
		HarvestNum:          job.HarvestNum,
		TemplateName:        job.TemplateName,
		MaxObjectsPerDomain: job.MaxObjectsPerDomain,
		MaxBytesPerDomain:   job.MaxBytesPerDomain,
		ConfigNames:         job.ConfigNames,
		Seeds:               seeds,
	}
}

// StoreMessage asks the repository side to store one finished container
// file.
type StoreMessage struct {
	ID       string `json:"id"`
	JobID    string `json:"jobID"`
	FileName string `json:"fileName"`
	Checksum string `json:"checksum"`
}

// NewStoreMessage builds a store request for a finished container file.
func NewStoreMessage(jobID, fileName, checksum string) *StoreMessage {
	return &StoreMessage{
		ID:       uuid.New().String(),
		JobID:    jobID,
		FileName: fileName,
		Checksum: checksum,
	}
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message, %w", err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode message, %w", err)
	}
	return nil
}

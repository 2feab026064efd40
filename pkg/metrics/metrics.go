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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelDefinition = "definition"
	LabelJob        = "job"
	LabelChannel    = "channel"
)

// Scheduler metrics
var (
	// DefinitionsDue counts harvest definitions found due at a tick
	DefinitionsDue = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "scheduler",
		Name:      "definitions_due_total",
		Help:      "Total number of harvest definitions found due",
	})

	// JobsGenerated counts crawl jobs generated, labeled by definition
	JobsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "scheduler",
		Name:      "jobs_generated_total",
		Help:      "Total number of crawl jobs generated",
	}, []string{LabelDefinition})
)

// Batch engine metrics
var (
	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "batch",
		Name:      "records_processed_total",
		Help:      "Total number of archive records processed",
	}, []string{LabelJob})

	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "batch",
		Name:      "records_failed_total",
		Help:      "Total number of archive records that failed processing",
	}, []string{LabelJob})

	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "batch",
		Name:      "files_processed_total",
		Help:      "Total number of archive files processed",
	}, []string{LabelJob})

	FilesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "batch",
		Name:      "files_failed_total",
		Help:      "Total number of archive files that failed processing",
	}, []string{LabelJob})
)

// Distribution metrics
var (
	JobsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "distribute",
		Name:      "jobs_published_total",
		Help:      "Total number of crawl jobs published on the job channel",
	})

	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "distribute",
		Name:      "messages_dropped_total",
		Help:      "Total number of undecodable messages dropped",
	}, []string{LabelChannel})
)

// Indexer metrics
var (
	FilesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "indexer",
		Name:      "files_indexed_total",
		Help:      "Total number of archive files indexed",
	})

	IndexRetries = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "indexer",
		Name:      "retries_total",
		Help:      "Total number of indexing retries",
	})
)

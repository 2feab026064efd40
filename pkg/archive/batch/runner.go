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

package batch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/netharvest/netharvest/pkg/archive"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
	"github.com/netharvest/netharvest/pkg/shared/queue"
)

// defaultRetainedErrors caps how many record-level errors a run keeps; older
// ones are dropped, the counts stay exact.
const defaultRetainedErrors = 100

// FileOutcome is the result of processing one container file.
type FileOutcome struct {
	Path      string `json:"path"`
	Records   int64  `json:"records"`
	Skipped   int64  `json:"skipped"`
	Failed    int64  `json:"failed"`
	Succeeded bool   `json:"succeeded"`
	// ResumeOffset is the offset of the first unprocessed record when the
	// file was aborted, -1 when the whole file was read.
	ResumeOffset int64  `json:"resumeOffset"`
	Err          string `json:"err,omitempty"`
}

// Status aggregates a whole run.
type Status struct {
	FilesProcessed   int            `json:"filesProcessed"`
	FilesFailed      int            `json:"filesFailed"`
	RecordsProcessed int64          `json:"recordsProcessed"`
	RecordsSkipped   int64          `json:"recordsSkipped"`
	RecordsFailed    int64          `json:"recordsFailed"`
	Outcomes         []*FileOutcome `json:"outcomes"`
	// RecordErrors holds the most recent record-level errors, capped.
	RecordErrors []string `json:"recordErrors,omitempty"`
}

// Runner applies one job to container files.
type Runner struct {
	name   string
	job    Job
	filter Filter
	errs   *queue.OverflowQueue[string]
}

// NewRunner returns a runner for the job; name labels its metrics. A nil
// filter accepts every record.
func NewRunner(name string, job Job, filter Filter) *Runner {
	if filter == nil {
		filter = NoFilter
	}
	return &Runner{
		name:   name,
		job:    job,
		filter: filter,
		errs:   queue.New[string](defaultRetainedErrors),
	}
}

// Run initializes the job, processes all files and finishes the job. Job
// output goes to w. A failing file never stops the run.
func (r *Runner) Run(ctx context.Context, paths []string, w io.Writer) (*Status, error) {
	log := logging.FromContext(ctx)
	if err := r.job.Initialize(w); err != nil {
		return nil, fmt.Errorf("job %s failed to initialize, %w", r.name, err)
	}
	status := &Status{}
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		default:
		}
		outcome := r.ProcessFile(ctx, path, w)
		status.add(outcome)
		if !outcome.Succeeded {
			log.Warnw("Archive file failed", "file", path, "resumeOffset", outcome.ResumeOffset, "err", outcome.Err)
		}
	}
	status.RecordErrors = r.errs.Items()
	if err := r.job.Finish(w); err != nil {
		return status, fmt.Errorf("job %s failed to finish, %w", r.name, err)
	}
	return status, nil
}

func (s *Status) add(o *FileOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.FilesProcessed++
	if !o.Succeeded {
		s.FilesFailed++
	}
	s.RecordsProcessed += o.Records
	s.RecordsSkipped += o.Skipped
	s.RecordsFailed += o.Failed
}

// ProcessFile streams the records of one container file through the job.
// Record-scoped errors mark the file failed but processing continues; any
// other error aborts the file with a resumable offset.
func (r *Runner) ProcessFile(ctx context.Context, path string, w io.Writer) *FileOutcome {
	return r.processFrom(ctx, path, 0, w)
}

// ResumeFile continues an aborted file from the offset reported in its
// outcome.
func (r *Runner) ResumeFile(ctx context.Context, path string, offset int64, w io.Writer) *FileOutcome {
	return r.processFrom(ctx, path, offset, w)
}

func (r *Runner) processFrom(ctx context.Context, path string, offset int64, w io.Writer) *FileOutcome {
	log := logging.FromContext(ctx)
	outcome := &FileOutcome{Path: path, Succeeded: true, ResumeOffset: -1}

	reader, err := archive.OpenAt(path, offset)
	if err != nil {
		outcome.Succeeded = false
		outcome.ResumeOffset = offset
		outcome.Err = err.Error()
		metrics.FilesFailed.WithLabelValues(r.name).Inc()
		return outcome
	}
	defer reader.Close()

	if fa, ok := r.job.(FileAware); ok {
		fa.StartFile(path)
	}

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// a broken container cannot be iterated past the damage
			outcome.Succeeded = false
			outcome.ResumeOffset = offset
			outcome.Err = err.Error()
			metrics.FilesFailed.WithLabelValues(r.name).Inc()
			return outcome
		}
		offset = rec.Offset

		if !r.filter(rec) {
			outcome.Skipped++
			continue
		}
		if err := r.job.ProcessRecord(rec, w); err != nil {
			var recErr *RecordError
			if errors.As(err, &recErr) {
				outcome.Failed++
				outcome.Succeeded = false
				r.errs.Append(err.Error())
				metrics.RecordsFailed.WithLabelValues(r.name).Inc()
				log.Debugw("Record failed", "file", path, "err", err)
				continue
			}
			outcome.Succeeded = false
			outcome.ResumeOffset = rec.Offset
			outcome.Err = err.Error()
			metrics.FilesFailed.WithLabelValues(r.name).Inc()
			return outcome
		}
		outcome.Records++
		metrics.RecordsProcessed.WithLabelValues(r.name).Inc()
	}
	if outcome.Succeeded {
		metrics.FilesProcessed.WithLabelValues(r.name).Inc()
	} else {
		metrics.FilesFailed.WithLabelValues(r.name).Inc()
	}
	return outcome
}

// RunFileJob drives a whole-file job over the given paths, with the same
// continue-on-failure semantics as record runs.
func RunFileJob(ctx context.Context, name string, job FileJob, paths []string, w io.Writer) (*Status, error) {
	log := logging.FromContext(ctx)
	if err := job.Initialize(w); err != nil {
		return nil, fmt.Errorf("job %s failed to initialize, %w", name, err)
	}
	status := &Status{}
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		default:
		}
		outcome := &FileOutcome{Path: path, Succeeded: true, ResumeOffset: -1}
		if err := job.ProcessFile(path, w); err != nil {
			outcome.Succeeded = false
			outcome.ResumeOffset = 0
			outcome.Err = err.Error()
			metrics.FilesFailed.WithLabelValues(name).Inc()
			log.Warnw("Archive file failed", "file", path, "err", err)
		} else {
			metrics.FilesProcessed.WithLabelValues(name).Inc()
		}
		status.add(outcome)
	}
	if err := job.Finish(w); err != nil {
		return status, fmt.Errorf("job %s failed to finish, %w", name, err)
	}
	return status, nil
}

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

// Package batch runs jobs over the records of archive container files. One
// record failing never stops a run; anything worse aborts the current file
// at a resumable offset.
package batch

import (
	"fmt"
	"io"

	"github.com/netharvest/netharvest/pkg/archive"
)

// Job is a unit of processing applied to every accepted record of a set of
// container files. Initialize and Finish bracket the whole run, not each
// file.
type Job interface {
	Initialize(w io.Writer) error
	// ProcessRecord handles one record. Returning a *RecordError marks the
	// record failed and continues with the next one; any other error aborts
	// the current file.
	ProcessRecord(rec *archive.Record, w io.Writer) error
	Finish(w io.Writer) error
}

// FileJob processes whole container files instead of their records.
type FileJob interface {
	Initialize(w io.Writer) error
	ProcessFile(path string, w io.Writer) error
	Finish(w io.Writer) error
}

// FileAware jobs are told which container file the following records come
// from.
type FileAware interface {
	StartFile(path string)
}

// RecordError scopes a processing failure to a single record. The runner
// continues with the next record when it sees one.
type RecordError struct {
	URL    string
	Offset int64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %q at offset %d: %v", e.URL, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError wraps err as a failure of the given record.
func NewRecordError(rec *archive.Record, err error) *RecordError {
	return &RecordError{URL: rec.URL, Offset: rec.Offset, Err: err}
}

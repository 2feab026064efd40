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
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ChecksumJob computes the md5 of every container file and reports files
// sharing a checksum on Finish. Output lines are "<name>##<md5hex>"; the
// duplicate report lists each duplicated checksum with its file names.
type ChecksumJob struct {
	byChecksum map[string][]string
}

func NewChecksumJob() *ChecksumJob {
	return &ChecksumJob{}
}

func (j *ChecksumJob) Initialize(io.Writer) error {
	j.byChecksum = map[string][]string{}
	return nil
}

func (j *ChecksumJob) ProcessFile(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s, %w", path, err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to checksum %s, %w", path, err)
	}
	sum := fmt.Sprintf("%x", h.Sum(nil))
	name := filepath.Base(path)
	j.byChecksum[sum] = append(j.byChecksum[sum], name)
	_, err = fmt.Fprintf(w, "%s##%s\n", name, sum)
	return err
}

// Finish writes the duplicate report: one line per checksum seen on more
// than one file.
func (j *ChecksumJob) Finish(w io.Writer) error {
	var dups []string
	for sum, names := range j.byChecksum {
		if len(names) > 1 {
			dups = append(dups, sum)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	for _, sum := range dups {
		names := j.byChecksum[sum]
		sort.Strings(names)
		if _, err := fmt.Fprintf(w, "duplicate %s:", sum); err != nil {
			return err
		}
		for _, name := range names {
			if _, err := fmt.Fprintf(w, " %s", name); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

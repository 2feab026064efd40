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
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/netharvest/netharvest/pkg/archive"
)

// CDXExtractionJob writes one 9-field CDX line per response record:
// urlkey date url mime status digest redirect offset filename. The playback
// index is built from these lines.
type CDXExtractionJob struct {
	// KeyFunc canonicalizes a URL into its index key; the raw URL is used
	// when nil.
	KeyFunc func(string) string

	fileName string
}

func NewCDXExtractionJob(keyFunc func(string) string) *CDXExtractionJob {
	return &CDXExtractionJob{KeyFunc: keyFunc}
}

// StartFile records the container name written into the filename field.
func (j *CDXExtractionJob) StartFile(path string) {
	j.fileName = filepath.Base(path)
}

func (j *CDXExtractionJob) Initialize(io.Writer) error { return nil }
func (j *CDXExtractionJob) Finish(io.Writer) error     { return nil }

func (j *CDXExtractionJob) ProcessRecord(rec *archive.Record, w io.Writer) error {
	if rec.Type != archive.TypeResponse {
		return nil
	}
	key := rec.URL
	if j.KeyFunc != nil {
		key = j.KeyFunc(rec.URL)
	}

	status, err := blockStatus(rec.Body)
	if err != nil {
		return NewRecordError(rec, err)
	}
	mime := rec.MIMEType
	if mime == "" {
		mime = "-"
	}
	_, err = fmt.Fprintf(w, "%s %s %s %s %s %s - %d %s\n",
		key, cdxDate(rec.Date), rec.URL, firstToken(mime), status, blockDigest(rec), rec.Offset, j.fileName)
	return err
}

// blockStatus extracts the HTTP status code from the record block. Non-HTTP
// blocks get "-".
func blockStatus(body io.Reader) (string, error) {
	br := bufio.NewReader(body)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read record block, %w", err)
	}
	if strings.HasPrefix(first, "HTTP/") {
		parts := strings.Fields(first)
		if len(parts) >= 2 {
			return parts[1], nil
		}
	}
	return "-", nil
}

// blockDigest returns the record's declared block digest without its
// algorithm prefix, "-" when the record carries none (ARC records never
// do).
func blockDigest(rec *archive.Record) string {
	for name, value := range rec.Header {
		if strings.EqualFold(name, "WARC-Block-Digest") {
			return strings.TrimPrefix(value, "sha1:")
		}
	}
	return "-"
}

// cdxDate normalizes a record date to the 14-digit index form. ARC dates
// already carry it.
func cdxDate(raw string) string {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format("20060102150405")
	}
	return raw
}

// firstToken strips content-type parameters: "text/html; charset=utf-8"
// indexes as "text/html".
func firstToken(mime string) string {
	if i := strings.IndexAny(mime, "; "); i >= 0 {
		return mime[:i]
	}
	return mime
}

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

package wayback

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// duplicateAnnotation matches the crawl-log annotation the deduplicator
// writes: duplicate:"<container file>,<offset>".
var duplicateAnnotation = regexp.MustCompile(`duplicate:"([^,"]+),([0-9]+)"`)

// DedupAdapter turns Heritrix crawl-log lines carrying duplicate
// annotations into CDX lines pointing at the original capture, so
// deduplicated URLs stay playable without storing the content twice.
type DedupAdapter struct {
	canon *Canonicalizer
}

func NewDedupAdapter() *DedupAdapter {
	return &DedupAdapter{canon: NewCanonicalizer()}
}

// AdaptLine converts one crawl-log line into a CDX line. Lines without a
// duplicate annotation yield "", nil; malformed duplicate lines are an
// error.
func (a *DedupAdapter) AdaptLine(line string) (string, error) {
	m := duplicateAnnotation.FindStringSubmatch(line)
	if m == nil {
		return "", nil
	}
	file, offsetStr := m[1], m[2]
	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid duplicate offset in crawl log line %q", line)
	}

	// crawl log fields: timestamp status size url path referrer mime worker
	// fetch-timestamp digest source annotations
	fields := strings.Fields(line)
	if len(fields) < 12 {
		return "", fmt.Errorf("crawl log line has %d fields, need 12: %q", len(fields), line)
	}
	status := fields[1]
	capturedURL := fields[3]
	mime := fields[6]
	fetchStamp := fields[8]
	digest := strings.TrimPrefix(fields[9], "sha1:")

	// the fetch timestamp carries a +duration suffix; the index wants the
	// 14-digit date
	if len(fetchStamp) > 14 {
		fetchStamp = fetchStamp[:14]
	}

	return fmt.Sprintf("%s %s %s %s %s %s - %d %s",
		a.canon.URLKey(capturedURL), fetchStamp, capturedURL, mime, status, digest, offset, file), nil
}

// AdaptStream converts every duplicate line of a crawl log into a CDX line
// on w. Lines without annotations are skipped; a malformed duplicate line
// aborts with an error.
func (a *DedupAdapter) AdaptStream(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		cdx, err := a.AdaptLine(scanner.Text())
		if err != nil {
			return err
		}
		if cdx == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, cdx); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read crawl log, %w", err)
	}
	return nil
}

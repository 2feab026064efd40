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

package archive

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// warcReader reads WARC 1.0/1.1 containers. In compressed containers every
// record is its own gzip member per the WARC recommendation.
type warcReader struct {
	closer     io.Closer
	cnt        *counter
	base       int64
	compressed bool

	members *memberSource
	member  *bufio.Reader
	body    io.Reader
	started bool
}

func newWARCReader(closer io.Closer, cnt *counter, base int64, compressed bool) *warcReader {
	r := &warcReader{closer: closer, cnt: cnt, base: base, compressed: compressed}
	if compressed {
		r.members = &memberSource{cnt: cnt}
	}
	return r
}

func (r *warcReader) Next() (*Record, error) {
	if err := r.finishPrevious(); err != nil {
		return nil, err
	}
	offset := r.base + r.cnt.n

	var src io.ByteReader
	if r.compressed {
		mr, err := r.members.next()
		if err != nil {
			return nil, err
		}
		r.member = bufio.NewReader(mr)
		src = r.member
	} else {
		src = r.cnt
	}

	rec, err := parseWARCHeader(src)
	if err != nil {
		return nil, err
	}
	rec.Offset = offset
	if r.compressed {
		rec.Body = io.LimitReader(r.member, rec.ContentLength)
	} else {
		rec.Body = io.LimitReader(r.cnt, rec.ContentLength)
	}
	r.body = rec.Body
	r.started = true
	return rec, nil
}

// finishPrevious drains the unread remainder of the last record and its
// trailing separator so the stream sits at the next record (or member)
// start.
func (r *warcReader) finishPrevious() error {
	if !r.started {
		return nil
	}
	if r.compressed {
		// drain the whole member; gzip consumes exactly up to the member
		// boundary in the raw stream
		if _, err := io.Copy(io.Discard, r.member); err != nil {
			return fmt.Errorf("failed to skip record remainder, %w", err)
		}
		return nil
	}
	if _, err := io.Copy(io.Discard, r.body); err != nil {
		return fmt.Errorf("failed to skip record remainder, %w", err)
	}
	// two CRLF pairs terminate every record
	if err := r.cnt.skipNewlines(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to skip record separator, %w", err)
	}
	return nil
}

func (r *warcReader) Close() error {
	return r.closer.Close()
}

func parseWARCHeader(src io.ByteReader) (*Record, error) {
	version, err := readLine(src)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(version, "WARC/") {
		return nil, fmt.Errorf("not a WARC record header: %q", version)
	}
	rec := &Record{Header: map[string]string{}}
	for {
		line, err := readLine(src)
		if err != nil {
			return nil, fmt.Errorf("truncated WARC header, %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed WARC header field: %q", line)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		rec.Header[name] = value
		switch {
		case strings.EqualFold(name, "WARC-Type"):
			rec.Type = strings.ToLower(value)
		case strings.EqualFold(name, "WARC-Target-URI"):
			rec.URL = strings.Trim(value, "<>")
		case strings.EqualFold(name, "WARC-Date"):
			rec.Date = value
		case strings.EqualFold(name, "WARC-IP-Address"):
			rec.IP = value
		case strings.EqualFold(name, "Content-Type"):
			rec.MIMEType = value
		case strings.EqualFold(name, "Content-Length"):
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid Content-Length %q", value)
			}
			rec.ContentLength = n
		}
	}
	return rec, nil
}

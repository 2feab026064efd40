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

// arcReader reads the legacy ARC format. Records start with a single
// space-separated header line; version 1 has 5 fields, version 2 has 10,
// with the URL first and the length last. The first record of a container
// is the filedesc:// version block.
type arcReader struct {
	closer     io.Closer
	cnt        *counter
	base       int64
	compressed bool

	members *memberSource
	member  *bufio.Reader
	body    io.Reader
	started bool
}

func newARCReader(closer io.Closer, cnt *counter, base int64, compressed bool) *arcReader {
	r := &arcReader{closer: closer, cnt: cnt, base: base, compressed: compressed}
	if compressed {
		r.members = &memberSource{cnt: cnt}
	}
	return r
}

func (r *arcReader) Next() (*Record, error) {
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

	line, err := readLine(src)
	if err != nil {
		return nil, err
	}
	rec, err := parseARCHeader(line)
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

func (r *arcReader) finishPrevious() error {
	if !r.started {
		return nil
	}
	if r.compressed {
		if _, err := io.Copy(io.Discard, r.member); err != nil {
			return fmt.Errorf("failed to skip record remainder, %w", err)
		}
		return nil
	}
	if _, err := io.Copy(io.Discard, r.body); err != nil {
		return fmt.Errorf("failed to skip record remainder, %w", err)
	}
	// a newline terminates every record
	if err := r.cnt.skipNewlines(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to skip record separator, %w", err)
	}
	return nil
}

func (r *arcReader) Close() error {
	return r.closer.Close()
}

func parseARCHeader(line string) (*Record, error) {
	fields := strings.Fields(line)
	// v1: URL IP date mimetype length; v2 adds result, checksum, location,
	// offset and filename before the length
	if len(fields) != 5 && len(fields) != 10 {
		return nil, fmt.Errorf("malformed ARC record header: %q", line)
	}
	length, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("invalid ARC record length in %q", line)
	}
	rec := &Record{
		URL:           fields[0],
		IP:            fields[1],
		Date:          fields[2],
		MIMEType:      fields[3],
		ContentLength: length,
		Type:          TypeResponse,
	}
	if strings.HasPrefix(rec.URL, "filedesc://") {
		rec.Type = TypeFiledesc
	}
	return rec, nil
}

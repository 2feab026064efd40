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
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader iterates the records of one container file.
type Reader interface {
	// Next returns the next record, io.EOF when the container is done. Any
	// unread body of the previous record is skipped first.
	Next() (*Record, error)
	Close() error
}

// Open opens a container file and returns a reader for it, sniffing the
// format (WARC or ARC) and compression from the content.
func Open(path string) (Reader, error) {
	return OpenAt(path, 0)
}

// OpenAt opens a container file positioned at the given record offset. For
// compressed containers the offset must be a gzip member start, which is
// what Record.Offset reports.
func OpenAt(path string, offset int64) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file %s, %w", path, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to seek to offset %d in %s, %w", offset, path, err)
		}
	}
	br := bufio.NewReader(f)
	format, compressed, err := sniff(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cnt := &counter{br: br}
	switch format {
	case formatWARC:
		return newWARCReader(f, cnt, offset, compressed), nil
	default:
		return newARCReader(f, cnt, offset, compressed), nil
	}
}

type format int

const (
	formatWARC format = iota
	formatARC
)

var gzipMagic = []byte{0x1f, 0x8b}

// sniff peeks at the stream and decides container format and compression
// without consuming anything.
func sniff(br *bufio.Reader) (format, bool, error) {
	head, err := br.Peek(512)
	if err != nil && len(head) == 0 {
		return 0, false, fmt.Errorf("failed to read archive header, %w", err)
	}
	compressed := bytes.HasPrefix(head, gzipMagic)
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(head))
		if err != nil {
			return 0, false, fmt.Errorf("failed to read gzip header, %w", err)
		}
		buf := make([]byte, 64)
		n, _ := io.ReadFull(zr, buf)
		head = buf[:n]
	}
	switch {
	case bytes.HasPrefix(head, []byte("WARC/")):
		return formatWARC, compressed, nil
	case bytes.Contains(head, []byte("://")):
		// an ARC record header line starts with a URL (filedesc:// for the
		// version block)
		return formatARC, compressed, nil
	default:
		return 0, false, fmt.Errorf("unrecognized archive format")
	}
}

// counter tracks how many raw bytes have been consumed from the container so
// records can report exact offsets. It implements io.ByteReader so gzip
// never reads past a member boundary.
type counter struct {
	br *bufio.Reader
	n  int64
}

func (c *counter) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *counter) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

func (c *counter) UnreadByte() error {
	err := c.br.UnreadByte()
	if err == nil {
		c.n--
	}
	return err
}

// skipNewlines consumes record separators (CR/LF runs) between records of an
// uncompressed container.
func (c *counter) skipNewlines() error {
	for {
		b, err := c.ReadByte()
		if err != nil {
			return err
		}
		if b != '\r' && b != '\n' {
			return c.UnreadByte()
		}
	}
}

// readLine reads one line, stripping the trailing CRLF or LF.
func readLine(r io.ByteReader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if b == '\n' {
			break
		}
		sb.WriteByte(b)
	}
	return strings.TrimSuffix(sb.String(), "\r"), nil
}

// memberSource manages per-record gzip members over a counter. Each call to
// next positions the stream at the start of a member and returns a reader
// for its decompressed content.
type memberSource struct {
	cnt *counter
	zr  *gzip.Reader
}

// next returns the decompressed reader for the next member, io.EOF when the
// container has no more members.
func (m *memberSource) next() (io.Reader, error) {
	if m.zr == nil {
		zr, err := gzip.NewReader(m.cnt)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to open gzip member, %w", err)
		}
		m.zr = zr
	} else {
		if err := m.zr.Reset(m.cnt); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to open gzip member, %w", err)
		}
	}
	m.zr.Multistream(false)
	return m.zr, nil
}

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
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func warcRecordBytes(typ, url, contentType string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("WARC/1.0\r\n")
	fmt.Fprintf(&b, "WARC-Type: %s\r\n", typ)
	if url != "" {
		fmt.Fprintf(&b, "WARC-Target-URI: %s\r\n", url)
	}
	b.WriteString("WARC-Date: 2023-06-01T12:00:00Z\r\n")
	b.WriteString("WARC-IP-Address: 192.0.2.10\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("\r\n")
	b.Write(body)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}

func gzipMember(t *testing.T, record []byte) []byte {
	t.Helper()
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	_, err := zw.Write(record)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return b.Bytes()
}

func writeTestFile(t *testing.T, name string, chunks ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	var all []byte
	for _, c := range chunks {
		all = append(all, c...)
	}
	require.NoError(t, os.WriteFile(path, all, 0o644))
	return path
}

func testWARCRecords() [][]byte {
	return [][]byte{
		warcRecordBytes(TypeWarcinfo, "", "application/warc-fields", []byte("software: heritrix\r\n")),
		warcRecordBytes(TypeResponse, "http://www.example.com/", "application/http; msgtype=response", []byte("HTTP/1.1 200 OK\r\n\r\nhello world")),
		warcRecordBytes(TypeMetadata, "http://www.example.com/", "text/plain", []byte("outlink: http://example.org/")),
	}
}

func TestWARCReaderPlain(t *testing.T) {
	records := testWARCRecords()
	path := writeTestFile(t, "test.warc", records...)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeWarcinfo, rec.Type)
	assert.Equal(t, int64(0), rec.Offset)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeResponse, rec.Type)
	assert.Equal(t, "http://www.example.com/", rec.URL)
	assert.Equal(t, "2023-06-01T12:00:00Z", rec.Date)
	assert.Equal(t, "192.0.2.10", rec.IP)
	assert.Equal(t, int64(len(records[0])), rec.Offset)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\nhello world", string(body))

	// skip the metadata body without reading it
	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeMetadata, rec.Type)
	assert.Equal(t, int64(len(records[0])+len(records[1])), rec.Offset)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWARCReaderCompressed(t *testing.T) {
	records := testWARCRecords()
	var members [][]byte
	for _, rec := range records {
		members = append(members, gzipMember(t, rec))
	}
	path := writeTestFile(t, "test.warc.gz", members...)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var offsets []int64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		offsets = append(offsets, rec.Offset)
	}
	// offsets are gzip member starts
	require.Len(t, offsets, 3)
	assert.Equal(t, int64(0), offsets[0])
	assert.Equal(t, int64(len(members[0])), offsets[1])
	assert.Equal(t, int64(len(members[0])+len(members[1])), offsets[2])
}

func TestWARCReaderResume(t *testing.T) {
	records := testWARCRecords()
	var members [][]byte
	for _, rec := range records {
		members = append(members, gzipMember(t, rec))
	}
	path := writeTestFile(t, "test.warc.gz", members...)

	resumeAt := int64(len(members[0]) + len(members[1]))
	r, err := OpenAt(path, resumeAt)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeMetadata, rec.Type)
	assert.Equal(t, resumeAt, rec.Offset)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func arcRecordBytes(url, ip, date, mime string, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s %s %d\n", url, ip, date, mime, len(body))
	b.Write(body)
	b.WriteString("\n")
	return b.Bytes()
}

func testARCRecords() [][]byte {
	version := []byte("1 0 InternetArchive\nURL IP-address Archive-date Content-type Archive-length\n")
	return [][]byte{
		arcRecordBytes("filedesc://test.arc", "0.0.0.0", "20230601120000", "text/plain", version),
		arcRecordBytes("http://www.example.com/", "192.0.2.10", "20230601120001", "text/html", []byte("<html>hello</html>")),
		arcRecordBytes("http://www.example.com/style.css", "192.0.2.10", "20230601120002", "text/css", []byte("body{}")),
	}
}

func TestARCReaderPlain(t *testing.T) {
	records := testARCRecords()
	path := writeTestFile(t, "test.arc", records...)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeFiledesc, rec.Type)
	assert.Equal(t, int64(0), rec.Offset)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeResponse, rec.Type)
	assert.Equal(t, "http://www.example.com/", rec.URL)
	assert.Equal(t, "192.0.2.10", rec.IP)
	assert.Equal(t, "20230601120001", rec.Date)
	assert.Equal(t, "text/html", rec.MIMEType)
	assert.Equal(t, int64(len(records[0])), rec.Offset)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(body))

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "text/css", rec.MIMEType)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestARCReaderCompressedResume(t *testing.T) {
	records := testARCRecords()
	var members [][]byte
	for _, rec := range records {
		members = append(members, gzipMember(t, rec))
	}
	path := writeTestFile(t, "test.arc.gz", members...)

	r, err := Open(path)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeFiledesc, rec.Type)
	rec, err = r.Next()
	require.NoError(t, err)
	secondOffset := rec.Offset
	assert.Equal(t, int64(len(members[0])), secondOffset)
	require.NoError(t, r.Close())

	resumed, err := OpenAt(path, secondOffset)
	require.NoError(t, err)
	defer resumed.Close()
	rec, err = resumed.Next()
	require.NoError(t, err)
	assert.Equal(t, "http://www.example.com/", rec.URL)
	assert.Equal(t, secondOffset, rec.Offset)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.warc"))
	assert.Error(t, err)

	path := writeTestFile(t, "garbage.bin", []byte("this is not an archive at all"))
	_, err = Open(path)
	assert.Error(t, err)
}

func TestParseARCHeaderVersions(t *testing.T) {
	rec, err := parseARCHeader("http://example.com/ 192.0.2.1 20230601120000 text/html 200 checksum - 0 test.arc 42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ContentLength)
	assert.Equal(t, "http://example.com/", rec.URL)

	_, err = parseARCHeader("too few fields")
	assert.Error(t, err)
	_, err = parseARCHeader("http://example.com/ 192.0.2.1 20230601120000 text/html notanumber")
	assert.Error(t, err)
}

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

package repository

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := config.Load("")
	require.NoError(t, err)
	s.StoreDir = dir
	st, err := NewStore(s)
	require.NoError(t, err)
	return st, dir
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
}

func writeLocal(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestStoreAndChecksum(t *testing.T) {
	st, dir := testStore(t)
	content := []byte("archive bytes")
	path := writeLocal(t, "job-1.warc.gz", content)

	require.NoError(t, st.Store(testCtx(t), path))
	assert.True(t, st.Contains("job-1.warc.gz"))

	stored, err := os.ReadFile(filepath.Join(dir, "job-1.warc.gz"))
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	sum, err := st.Checksum("job-1.warc.gz")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum(content)), sum)

	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1.warc.gz"}, names)
}

func TestStoreRejectsBadExtension(t *testing.T) {
	st, _ := testStore(t)
	path := writeLocal(t, "notes.txt", []byte("not an archive"))
	assert.Error(t, st.Store(testCtx(t), path))
}

func TestStoreIdempotentAndConflicting(t *testing.T) {
	st, _ := testStore(t)
	content := []byte("archive bytes")
	path := writeLocal(t, "job-1.arc", content)
	require.NoError(t, st.Store(testCtx(t), path))

	// same content again is fine
	same := writeLocal(t, "job-1.arc", content)
	assert.NoError(t, st.Store(testCtx(t), same))

	// different content under the same name is refused
	different := writeLocal(t, "job-1.arc", []byte("other bytes"))
	err := st.Store(testCtx(t), different)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to replace")
}

func TestStoreCopyFailureExhaustsRetries(t *testing.T) {
	st, dir := testStore(t)

	// a directory squatting on the destination makes every copy attempt
	// fail at the rename
	require.NoError(t, os.Mkdir(filepath.Join(dir, "job-9.arc"), 0o755))
	path := writeLocal(t, "job-9.arc", []byte("archive bytes"))

	err := st.Store(testCtx(t), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store job-9.arc after")
	assert.Contains(t, err.Error(), "attempts")
}

func TestStoreGet(t *testing.T) {
	st, _ := testStore(t)

	// two-record WARC; fetch the second by its offset
	rec1 := buildWARCRecord("http://example.com/a", []byte("first"))
	rec2 := buildWARCRecord("http://example.com/b", []byte("second"))
	path := writeLocal(t, "job-2.warc", append(append([]byte{}, rec1...), rec2...))
	require.NoError(t, st.Store(testCtx(t), path))

	rec, err := st.Get(testCtx(t), "job-2.warc", int64(len(rec1)))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/b", rec.URL)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))

	_, err = st.Get(testCtx(t), "missing.warc", 0)
	assert.Error(t, err)
}

func buildWARCRecord(url string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("WARC/1.0\r\n")
	b.WriteString("WARC-Type: response\r\n")
	fmt.Fprintf(&b, "WARC-Target-URI: %s\r\n", url)
	b.WriteString("WARC-Date: 2023-06-01T12:00:00Z\r\n")
	b.WriteString("Content-Type: text/plain\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	b.WriteString("\r\n\r\n")
	return b.Bytes()
}

func TestUploader(t *testing.T) {
	st, _ := testStore(t)
	up := NewUploader(st)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.warc")
	b := filepath.Join(dir, "b.arc.gz")
	require.NoError(t, os.WriteFile(a, []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("bbb"), 0o644))

	require.NoError(t, up.Upload(testCtx(t), []string{a, b}))
	assert.True(t, st.Contains("a.warc"))
	assert.True(t, st.Contains("b.arc.gz"))
	_, err := os.Stat(a)
	assert.True(t, os.IsNotExist(err), "local copy removed after upload")
}

func TestUploaderAllOrNothingValidation(t *testing.T) {
	st, _ := testStore(t)
	up := NewUploader(st)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.warc")
	require.NoError(t, os.WriteFile(a, []byte("aaa"), 0o644))

	// one bad name fails the batch before anything is stored
	err := up.Upload(testCtx(t), []string{a, filepath.Join(dir, "readme.md")})
	require.Error(t, err)
	assert.False(t, st.Contains("a.warc"))
	_, statErr := os.Stat(a)
	assert.NoError(t, statErr, "nothing was deleted")

	// a missing file fails the batch too
	err = up.Upload(testCtx(t), []string{a, filepath.Join(dir, "gone.warc")})
	require.Error(t, err)
	assert.False(t, st.Contains("a.warc"))

	assert.Error(t, up.Upload(testCtx(t), nil))
}

func TestReplicaType(t *testing.T) {
	assert.Equal(t, ReplicaTypeBitarchive, ReplicaTypeFromSetting("bitarchive"))
	assert.Equal(t, ReplicaTypeChecksum, ReplicaTypeFromSetting(" Checksum "))
	assert.Equal(t, ReplicaTypeNone, ReplicaTypeFromSetting("tape-robot"))

	rt, err := ReplicaTypeFromOrdinal(2)
	require.NoError(t, err)
	assert.Equal(t, ReplicaTypeChecksum, rt)
	assert.Equal(t, "checksum", rt.String())
	_, err = ReplicaTypeFromOrdinal(7)
	assert.Error(t, err)
}

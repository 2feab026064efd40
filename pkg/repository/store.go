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
	"sort"
	"strings"
	"sync"

	"github.com/netharvest/netharvest/pkg/archive"
	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// validExtensions are the container file extensions the store accepts.
var validExtensions = []string{".arc", ".arc.gz", ".warc", ".warc.gz"}

// Store is a file-based bitarchive: container files are copied in, verified
// by md5, and never silently replaced with different content.
type Store struct {
	dir     string
	retries int

	mu sync.Mutex
}

func NewStore(s *config.Settings) (*Store, error) {
	if err := os.MkdirAll(s.StoreDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir %s, %w", s.StoreDir, err)
	}
	retries := s.StoreRetries
	if retries <= 0 {
		retries = 1
	}
	return &Store{dir: s.StoreDir, retries: retries}, nil
}

// ValidateName checks that the name carries an accepted container
// extension.
func ValidateName(name string) error {
	for _, ext := range validExtensions {
		if strings.HasSuffix(name, ext) {
			return nil
		}
	}
	return fmt.Errorf("%q is not an archive file (allowed: %s)", name, strings.Join(validExtensions, ", "))
}

// Store copies the file into the archive and verifies the copy's checksum,
// retrying the copy on mismatch. Re-storing identical content is a no-op;
// different content under the same name is an error.
func (st *Store) Store(ctx context.Context, path string) error {
	log := logging.FromContext(ctx)
	name := filepath.Base(path)
	if err := ValidateName(name); err != nil {
		return err
	}
	sum, err := fileChecksum(path)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	dest := filepath.Join(st.dir, name)
	if existing, err := fileChecksum(dest); err == nil {
		if existing == sum {
			log.Debugw("File already stored", "file", name)
			return nil
		}
		return fmt.Errorf("refusing to replace %s: stored checksum %s differs from %s", name, existing, sum)
	}

	var lastErr error
	for attempt := 1; attempt <= st.retries; attempt++ {
		if err := copyFile(path, dest); err != nil {
			lastErr = err
			log.Warnw("Copy into the store failed, retrying", "file", name, "attempt", attempt, "err", err)
			continue
		}
		written, err := fileChecksum(dest)
		if err != nil {
			lastErr = err
			log.Warnw("Failed to checksum the stored copy, retrying", "file", name, "attempt", attempt, "err", err)
			continue
		}
		if written != sum {
			lastErr = fmt.Errorf("checksum mismatch after copy of %s", name)
			os.Remove(dest)
			log.Warnw("Stored copy failed verification, retrying", "file", name, "attempt", attempt)
			continue
		}
		log.Infow("Stored archive file", "file", name, "md5", sum)
		return nil
	}
	return fmt.Errorf("failed to store %s after %d attempts, %w", name, st.retries, lastErr)
}

// Contains reports whether a file of that name is stored.
func (st *Store) Contains(name string) bool {
	_, err := os.Stat(filepath.Join(st.dir, name))
	return err == nil
}

// Checksum returns the md5 of a stored file.
func (st *Store) Checksum(name string) (string, error) {
	return fileChecksum(filepath.Join(st.dir, name))
}

// List returns the names of all stored files, sorted.
func (st *Store) List() ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store, %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Get returns the record at the given offset of a stored file, with the
// record block fully read so the caller owns it after return.
func (st *Store) Get(ctx context.Context, name string, offset int64) (*archive.Record, error) {
	path := filepath.Join(st.dir, name)
	r, err := archive.OpenAt(path, offset)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	rec, err := r.Next()
	if err != nil {
		return nil, fmt.Errorf("no record at offset %d of %s, %w", offset, name, err)
	}
	block, err := io.ReadAll(rec.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read record at offset %d of %s, %w", offset, name, err)
	}
	rec.Body = bytes.NewReader(block)
	return rec, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s, %w", path, err)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s, %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s, %w", src, err)
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s, %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy %s, %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to flush %s, %w", tmp, err)
	}
	return os.Rename(tmp, dst)
}

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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/netharvest/netharvest/pkg/archive/batch"
	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// seenCacheSize bounds the fast-path cache of already indexed file names.
const seenCacheSize = 1024

// ArchiveFile tracks the indexing state of one container file in the
// incoming directory.
type ArchiveFile struct {
	Filename    string    `json:"filename"`
	Indexed     bool      `json:"indexed"`
	IndexedDate time.Time `json:"indexedDate,omitempty"`
	Retries     int       `json:"retries"`
	// OriginalIndexFileName is the name of the CDX file produced for this
	// container.
	OriginalIndexFileName string `json:"originalIndexFileName,omitempty"`
}

// Indexer turns incoming archive files into CDX index files. It reacts to
// filesystem events on the incoming directory and sweeps it periodically to
// catch anything the watcher missed.
type Indexer struct {
	incomingDir string
	outputDir   string
	maxRetries  int
	sweepEvery  time.Duration
	canon       *Canonicalizer

	mu    sync.Mutex
	files map[string]*ArchiveFile
	seen  *lru.Cache[string, time.Time]
}

func NewIndexer(s *config.Settings) (*Indexer, error) {
	seen, err := lru.New[string, time.Time](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer cache, %w", err)
	}
	maxRetries := s.IndexerRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Indexer{
		incomingDir: s.IncomingDir,
		outputDir:   s.IndexOutputDir,
		maxRetries:  maxRetries,
		sweepEvery:  time.Minute,
		canon:       NewCanonicalizer(),
		files:       map[string]*ArchiveFile{},
		seen:        seen,
	}, nil
}

// isArchiveFile reports whether the name looks like a container file the
// indexer handles.
func isArchiveFile(name string) bool {
	for _, suffix := range []string{".arc", ".arc.gz", ".warc", ".warc.gz"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Start watches the incoming directory and sweeps it until the context is
// done.
func (ix *Indexer) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if err := os.MkdirAll(ix.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create index output dir, %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create directory watcher, %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(ix.incomingDir); err != nil {
		return fmt.Errorf("failed to watch %s, %w", ix.incomingDir, err)
	}
	log.Infof("Wayback indexer watching %s", ix.incomingDir)

	ix.sweep(ctx)
	ticker := time.NewTicker(ix.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Wayback indexer stopped")
			return nil
		case event := <-watcher.Events:
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !isArchiveFile(name) {
				continue
			}
			if err := ix.IndexFile(ctx, name); err != nil {
				log.Errorw("Failed to index archive file", "file", name, "err", err)
			}
		case err := <-watcher.Errors:
			log.Errorw("Directory watcher error", "err", err)
		case <-ticker.C:
			ix.sweep(ctx)
		}
	}
}

// sweep indexes every unprocessed archive file currently in the incoming
// directory.
func (ix *Indexer) sweep(ctx context.Context) {
	log := logging.FromContext(ctx)
	entries, err := os.ReadDir(ix.incomingDir)
	if err != nil {
		log.Errorw("Failed to list incoming dir", "dir", ix.incomingDir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isArchiveFile(e.Name()) {
			continue
		}
		if ix.seen.Contains(e.Name()) {
			continue
		}
		if err := ix.IndexFile(ctx, e.Name()); err != nil {
			log.Warnw("Failed to index archive file", "file", e.Name(), "err", err)
		}
	}
}

// IndexFile runs the CDX extraction job over one file of the incoming
// directory, writing <name>.cdx into the output dir. Files that failed
// maxRetries times are given up on.
func (ix *Indexer) IndexFile(ctx context.Context, name string) error {
	ix.mu.Lock()
	entry, ok := ix.files[name]
	if !ok {
		entry = &ArchiveFile{Filename: name}
		ix.files[name] = entry
	}
	if entry.Indexed {
		ix.mu.Unlock()
		return nil
	}
	if entry.Retries >= ix.maxRetries {
		ix.mu.Unlock()
		return fmt.Errorf("giving up on %s after %d attempts", name, entry.Retries)
	}
	ix.mu.Unlock()

	indexName := name + ".cdx"
	outPath := filepath.Join(ix.outputDir, indexName)
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create index file %s, %w", outPath, err)
	}

	runner := batch.NewRunner("indexer", batch.NewCDXExtractionJob(ix.canon.URLKey), batch.ResponsesOnly())
	outcome := runner.ProcessFile(ctx, filepath.Join(ix.incomingDir, name), out)
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close index file %s, %w", outPath, err)
	}
	if !outcome.Succeeded {
		os.Remove(outPath)
		ix.mu.Lock()
		entry.Retries++
		ix.mu.Unlock()
		metrics.IndexRetries.Inc()
		return indexFailure(name, outcome)
	}

	ix.mu.Lock()
	entry.Indexed = true
	entry.IndexedDate = time.Now()
	entry.OriginalIndexFileName = indexName
	ix.mu.Unlock()
	ix.seen.Add(name, entry.IndexedDate)
	metrics.FilesIndexed.Inc()
	return nil
}

// indexFailure names why a file could not be indexed. Files failed by
// record-level errors carry no file error, only a count.
func indexFailure(name string, outcome *batch.FileOutcome) error {
	if outcome.Err != "" {
		return fmt.Errorf("failed to index %s: %s", name, outcome.Err)
	}
	return fmt.Errorf("failed to index %s: %d of %d records failed", name, outcome.Failed, outcome.Records)
}

// Files returns the indexing state of all files the indexer has seen,
// sorted by name.
func (ix *Indexer) Files() []ArchiveFile {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]ArchiveFile, 0, len(ix.files))
	for _, f := range ix.files {
		out = append(out, *f)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Filename < out[b].Filename })
	return out
}

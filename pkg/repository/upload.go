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
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// Uploader moves local container files into the store, deleting the local
// copy once its stored counterpart is verified.
type Uploader struct {
	store *Store
}

func NewUploader(store *Store) *Uploader {
	return &Uploader{store: store}
}

// Upload stores all given files. Arguments are validated up front so a bad
// name fails the whole batch before anything is stored; a store failure
// stops the batch, already uploaded files stay uploaded.
func (u *Uploader) Upload(ctx context.Context, paths []string) error {
	log := logging.FromContext(ctx)
	if len(paths) == 0 {
		return fmt.Errorf("no files to upload")
	}
	for _, path := range paths {
		if err := ValidateName(filepath.Base(path)); err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot upload %s, %w", path, err)
		}
	}
	for _, path := range paths {
		if err := u.store.Store(ctx, path); err != nil {
			return fmt.Errorf("upload stopped at %s, %w", path, err)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("stored %s but failed to remove the local copy, %w", path, err)
		}
		log.Infow("Uploaded archive file", "file", filepath.Base(path))
	}
	return nil
}

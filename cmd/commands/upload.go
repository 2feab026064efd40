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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netharvest/netharvest/pkg/repository"
)

func NewUploadCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "upload [files]",
		Short: "Store archive files in the repository, removing local copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("no files given")
			}
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := signalContext("upload")
			defer stop()

			store, err := repository.NewStore(settings)
			if err != nil {
				return err
			}
			return repository.NewUploader(store).Upload(ctx, args)
		},
	}
	return command
}

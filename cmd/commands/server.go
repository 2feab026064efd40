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

	"github.com/netharvest/netharvest/pkg/harvest"
	"github.com/netharvest/netharvest/server"
)

func NewServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "server",
		Short: "Start the admin API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := signalContext("server")
			defer stop()

			registry := harvest.NewStore(settings.SnapshotFile)
			if err := registry.Load(); err != nil {
				return fmt.Errorf("failed to load the harvest registry, %w", err)
			}
			return server.NewServer(registry, settings).Start(ctx)
		},
	}
	return command
}

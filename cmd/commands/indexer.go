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
	"github.com/spf13/cobra"

	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
	"github.com/netharvest/netharvest/pkg/wayback"
)

func NewIndexerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "indexer",
		Short: "Start the wayback CDX indexer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			ctx, stop := signalContext("indexer")
			defer stop()
			log := logging.FromContext(ctx)

			indexer, err := wayback.NewIndexer(settings)
			if err != nil {
				return err
			}

			go func() {
				ms := metrics.NewMetricsServer(settings.MetricsAddr)
				if err := ms.Start(ctx); err != nil {
					log.Errorw("Metrics server exited", "err", err)
				}
			}()

			return indexer.Start(ctx)
		},
	}
	return command
}

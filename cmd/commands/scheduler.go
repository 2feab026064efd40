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
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/distribute"
	"github.com/netharvest/netharvest/pkg/harvest"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

func NewSchedulerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "scheduler",
		Short: "Start the harvest scheduler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext("scheduler")
			defer stop()
			log := logging.FromContext(ctx)

			// with a config file the scheduler picks up edits to its
			// sizing tunables without a restart
			var sched atomic.Pointer[harvest.Scheduler]
			var settings *config.Settings
			var err error
			if file := resolvedConfigFile(); file != "" {
				settings, err = config.LoadWithWatch(file,
					func(fresh *config.Settings) {
						if s := sched.Load(); s != nil {
							log.Infow("Configuration reloaded", "file", file)
							s.UpdateSettings(fresh)
						}
					},
					func(err error) {
						log.Errorw("Failed to reload configuration", "file", file, "err", err)
					})
			} else {
				settings, err = config.Load("")
			}
			if err != nil {
				return err
			}

			registry := harvest.NewStore(settings.SnapshotFile)
			if err := registry.Load(); err != nil {
				return fmt.Errorf("failed to load the harvest registry, %w", err)
			}

			client, err := distribute.NewClient(ctx, settings.NATSURL)
			if err != nil {
				return err
			}
			defer client.Close()
			pub := distribute.NewPublisher(client, registry, settings)

			go func() {
				ms := metrics.NewMetricsServer(settings.MetricsAddr)
				if err := ms.Start(ctx); err != nil {
					log.Errorw("Metrics server exited", "err", err)
				}
			}()

			s := harvest.NewScheduler(registry, pub, settings)
			sched.Store(s)
			return s.Start(ctx)
		},
	}
	return command
}

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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/shared/logging"
	"github.com/netharvest/netharvest/pkg/shared/util"
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:   "netharvest",
		Short: "netharvest - distributed web-archiving management",
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (optional, defaults apply without one)")
	rootCmd.AddCommand(NewSchedulerCommand())
	rootCmd.AddCommand(NewIndexerCommand())
	rootCmd.AddCommand(NewServerCommand())
	rootCmd.AddCommand(NewBatchCommand())
	rootCmd.AddCommand(NewUploadCommand())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolvedConfigFile is the config file in effect: the --config flag, or
// the NETHARVEST_CONFIG env var, or empty for defaults.
func resolvedConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return util.LookupEnvStringOr("NETHARVEST_CONFIG", "")
}

// loadSettings loads the configuration the daemons share.
func loadSettings() (*config.Settings, error) {
	return config.Load(resolvedConfigFile())
}

// signalContext returns a context carrying the named logger, cancelled on
// SIGINT/SIGTERM.
func signalContext(name string) (context.Context, context.CancelFunc) {
	log := logging.NewLogger().Named(name)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return logging.WithLogger(ctx, log), stop
}

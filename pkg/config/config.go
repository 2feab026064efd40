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

package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Settings holds the tunables of the suite. Values come from the defaults
// below, overridden by an optional config file.
type Settings struct {
	// Scheduler
	SchedulerTick time.Duration `mapstructure:"schedulerTick"`
	// ErrorFactorPrevResult divides the headroom above the last harvest
	// result when estimating how many objects a completed domain will yield
	// next time.
	ErrorFactorPrevResult int64 `mapstructure:"errorFactorPrevResult"`
	// MaxDomainSize is the default object cap for a domain without history.
	MaxDomainSize int64 `mapstructure:"maxDomainSize"`
	// ExpectedAverageBytesPerObject is used until a domain has trustworthy
	// history.
	ExpectedAverageBytesPerObject int64 `mapstructure:"expectedAverageBytesPerObject"`
	// MinObjectsToTrustSmallExpectation is the sample size below which a
	// small bytes-per-object estimate is not trusted.
	MinObjectsToTrustSmallExpectation int64 `mapstructure:"minObjectsToTrustSmallExpectation"`

	// Job sizing
	MaxTotalJobSize           int64 `mapstructure:"maxTotalJobSize"`
	MaxRelativeSizeDifference int64 `mapstructure:"maxRelativeSizeDifference"`
	MinAbsoluteSizeDifference int64 `mapstructure:"minAbsoluteSizeDifference"`

	// Directories
	StoreDir       string `mapstructure:"storeDir"`
	IncomingDir    string `mapstructure:"incomingDir"`
	IndexOutputDir string `mapstructure:"indexOutputDir"`
	SnapshotFile   string `mapstructure:"snapshotFile"`

	// Retries
	StoreRetries   int `mapstructure:"storeRetries"`
	IndexerRetries int `mapstructure:"indexerRetries"`

	// Messaging
	NATSURL      string `mapstructure:"natsURL"`
	JobChannel   string `mapstructure:"jobChannel"`
	StoreChannel string `mapstructure:"storeChannel"`

	// Listen addresses
	AdminAddr   string `mapstructure:"adminAddr"`
	MetricsAddr string `mapstructure:"metricsAddr"`
}

func newViper(file string) *viper.Viper {
	v := viper.New()
	v.SetDefault("schedulerTick", time.Minute)
	v.SetDefault("errorFactorPrevResult", 10)
	v.SetDefault("maxDomainSize", 5000)
	v.SetDefault("expectedAverageBytesPerObject", 38000)
	v.SetDefault("minObjectsToTrustSmallExpectation", 50)
	v.SetDefault("maxTotalJobSize", 2000000)
	v.SetDefault("maxRelativeSizeDifference", 100)
	v.SetDefault("minAbsoluteSizeDifference", 2000)
	v.SetDefault("storeDir", "/var/lib/netharvest/store")
	v.SetDefault("incomingDir", "/var/lib/netharvest/incoming")
	v.SetDefault("indexOutputDir", "/var/lib/netharvest/index")
	v.SetDefault("snapshotFile", "/var/lib/netharvest/definitions.json")
	v.SetDefault("storeRetries", 3)
	v.SetDefault("indexerRetries", 3)
	v.SetDefault("natsURL", "nats://localhost:4222")
	v.SetDefault("jobChannel", "netharvest.jobs")
	v.SetDefault("storeChannel", "netharvest.store")
	v.SetDefault("adminAddr", ":8443")
	v.SetDefault("metricsAddr", ":2469")
	if file != "" {
		v.SetConfigFile(file)
	}
	return v
}

// Load reads the settings, from defaults only when file is empty.
func Load(file string) (*Settings, error) {
	v := newViper(file)
	if file != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file, %w", err)
		}
	}
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration, %w", err)
	}
	return s, nil
}

// LoadWithWatch loads the settings from the given file and watches it for
// changes. Every successful reload hands a fresh Settings to onReload; the
// returned Settings are never mutated, so readers of the original copy need
// no locking. onErrorReloading is called when a reload fails.
func LoadWithWatch(file string, onReload func(*Settings), onErrorReloading func(error)) (*Settings, error) {
	v := newViper(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file, %w", err)
	}
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration, %w", err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		fresh := &Settings{}
		if err := v.Unmarshal(fresh); err != nil {
			onErrorReloading(err)
			return
		}
		onReload(fresh)
	})
	v.WatchConfig()
	return s, nil
}

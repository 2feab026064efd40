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

package distribute

import (
	"context"
	"fmt"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/harvest"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// Publisher puts jobs and store requests on their channels. It satisfies
// harvest.JobPublisher, resolving each job's seeds from the registry before
// the job goes on the wire.
type Publisher struct {
	client       *Client
	registry     *harvest.Store
	jobChannel   string
	storeChannel string
}

func NewPublisher(client *Client, registry *harvest.Store, s *config.Settings) *Publisher {
	return &Publisher{
		client:       client,
		registry:     registry,
		jobChannel:   s.JobChannel,
		storeChannel: s.StoreChannel,
	}
}

// PublishJob resolves the job's seeds and publishes it on the job channel.
func (p *Publisher) PublishJob(ctx context.Context, job *harvest.Job) error {
	log := logging.FromContext(ctx)
	seeds, err := p.resolveSeeds(job)
	if err != nil {
		return err
	}
	data, err := encode(NewJobMessage(job, seeds))
	if err != nil {
		return err
	}
	if err := p.client.nc.Publish(p.jobChannel, data); err != nil {
		return fmt.Errorf("failed to publish job %s, %w", job.ID, err)
	}
	if err := p.client.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush job %s, %w", job.ID, err)
	}
	metrics.JobsPublished.Inc()
	log.Infow("Published job", "job", job.ID, "channel", p.jobChannel, "domains", len(job.ConfigNames))
	return nil
}

// PublishStore publishes a store request on the store channel.
func (p *Publisher) PublishStore(ctx context.Context, msg *StoreMessage) error {
	log := logging.FromContext(ctx)
	data, err := encode(msg)
	if err != nil {
		return err
	}
	if err := p.client.nc.Publish(p.storeChannel, data); err != nil {
		return fmt.Errorf("failed to publish store request for %s, %w", msg.FileName, err)
	}
	if err := p.client.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush store request for %s, %w", msg.FileName, err)
	}
	log.Infow("Published store request", "file", msg.FileName, "channel", p.storeChannel)
	return nil
}

func (p *Publisher) resolveSeeds(job *harvest.Job) (map[string][]string, error) {
	seeds := make(map[string][]string, len(job.ConfigNames))
	for domainName, cfgName := range job.ConfigNames {
		d, err := p.registry.GetDomain(domainName)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve seeds for job %s, %w", job.ID, err)
		}
		cfg, err := d.GetConfiguration(cfgName)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve seeds for job %s, %w", job.ID, err)
		}
		seeds[domainName] = cfg.Seeds(d)
	}
	return seeds, nil
}

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

	"github.com/nats-io/nats.go"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/metrics"
	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// JobHandler consumes one job taken off the job channel.
type JobHandler func(ctx context.Context, msg *JobMessage)

// StoreHandler consumes one store request taken off the store channel.
type StoreHandler func(ctx context.Context, msg *StoreMessage)

// Subscriber attaches handlers to the job and store channels. Handlers run
// on the connection's delivery goroutine; undecodable messages are dropped
// with a log line rather than stalling the channel.
type Subscriber struct {
	client       *Client
	jobChannel   string
	storeChannel string

	subs []*nats.Subscription
}

func NewSubscriber(client *Client, s *config.Settings) *Subscriber {
	return &Subscriber{
		client:       client,
		jobChannel:   s.JobChannel,
		storeChannel: s.StoreChannel,
	}
}

// SubscribeJobs attaches the handler to the job channel.
func (s *Subscriber) SubscribeJobs(ctx context.Context, handler JobHandler) error {
	log := logging.FromContext(ctx)
	sub, err := s.client.nc.Subscribe(s.jobChannel, func(m *nats.Msg) {
		var msg JobMessage
		if err := decode(m.Data, &msg); err != nil {
			metrics.MessagesDropped.WithLabelValues(s.jobChannel).Inc()
			log.Errorw("Dropping undecodable job message", "channel", s.jobChannel, "err", err)
			return
		}
		handler(ctx, &msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s, %w", s.jobChannel, err)
	}
	s.subs = append(s.subs, sub)
	log.Infow("Subscribed", "channel", s.jobChannel)
	return nil
}

// SubscribeStore attaches the handler to the store channel. Members of the
// same queue group share the channel so a request is stored once.
func (s *Subscriber) SubscribeStore(ctx context.Context, queue string, handler StoreHandler) error {
	log := logging.FromContext(ctx)
	cb := func(m *nats.Msg) {
		var msg StoreMessage
		if err := decode(m.Data, &msg); err != nil {
			metrics.MessagesDropped.WithLabelValues(s.storeChannel).Inc()
			log.Errorw("Dropping undecodable store message", "channel", s.storeChannel, "err", err)
			return
		}
		handler(ctx, &msg)
	}
	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = s.client.nc.QueueSubscribe(s.storeChannel, queue, cb)
	} else {
		sub, err = s.client.nc.Subscribe(s.storeChannel, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s, %w", s.storeChannel, err)
	}
	s.subs = append(s.subs, sub)
	log.Infow("Subscribed", "channel", s.storeChannel, "queue", queue)
	return nil
}

// Close unsubscribes all handlers.
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			return err
		}
	}
	s.subs = nil
	return nil
}

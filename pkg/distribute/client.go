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

// Package distribute carries jobs and store requests between the daemons
// over NATS channels.
package distribute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/netharvest/netharvest/pkg/shared/logging"
)

// Client is a NATS connection shared by the publishers and subscribers of
// one process.
type Client struct {
	sync.Mutex
	nc  *nats.Conn
	log *zap.SugaredLogger
}

// NewClient connects to the NATS server at the given URL.
func NewClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// if max reconnects is set to -1, it will try to reconnect forever
		nats.MaxReconnects(-1),
		nats.PingInterval(3 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		// retry on failed connect should be true, else it wont try to
		// reconnect during initial connect
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		nats.FlusherTimeout(10 * time.Second),
		nats.MaxPingsOutstanding(2),
	}
	opts = append(opts, natsOptions...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	return &Client{nc: nc, log: log}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() {
	c.Lock()
	defer c.Unlock()
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			c.log.Warnw("Failed to drain nats connection", zap.Error(err))
		}
		c.nc.Close()
	}
}

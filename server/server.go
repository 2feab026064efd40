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

// Package server hosts the admin HTTP API over the harvest registry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/harvest"
	"github.com/netharvest/netharvest/pkg/shared/logging"
	"github.com/netharvest/netharvest/pkg/shared/util"
	v1 "github.com/netharvest/netharvest/server/apis/v1"
	"github.com/netharvest/netharvest/server/routes"
)

type Server struct {
	registry *harvest.Store
	settings *config.Settings
	opts     []v1.HandlerOption
}

func NewServer(registry *harvest.Store, settings *config.Settings, opts ...v1.HandlerOption) *Server {
	return &Server{
		registry: registry,
		settings: settings,
		opts:     opts,
	}
}

// Start serves the admin API and blocks until the context is done; the
// returned error is nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	log := logging.FromContext(ctx)
	if !util.LookupEnvBoolOr("NETHARVEST_DEBUG", false) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/healthz"}}))
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = true
	routes.Routes(router, s.registry, s.settings, s.opts...)

	srv := &http.Server{Addr: s.settings.AdminAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Infof("Admin server listening on %s", s.settings.AdminAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("admin server failed, %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

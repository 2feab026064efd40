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

package v1

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netharvest/netharvest/pkg/archive/batch"
	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/harvest"
)

type handlerOptions struct {
	// batchStatus, when set, supplies the status of the batch runs this
	// process has performed.
	batchStatus func() *batch.Status
}

func defaultHandlerOptions() *handlerOptions {
	return &handlerOptions{}
}

type HandlerOption func(*handlerOptions)

// WithBatchStatus wires a source for the batch status endpoint.
func WithBatchStatus(fn func() *batch.Status) HandlerOption {
	return func(o *handlerOptions) {
		o.batchStatus = fn
	}
}

type handler struct {
	registry *harvest.Store
	settings *config.Settings
	limits   harvest.JobLimits
	opts     *handlerOptions
}

// NewHandler is used to provide a new instance of the handler type
func NewHandler(registry *harvest.Store, settings *config.Settings, opts ...HandlerOption) (*handler, error) {
	if registry == nil {
		return nil, fmt.Errorf("handler needs a harvest registry")
	}
	o := defaultHandlerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &handler{
		registry: registry,
		settings: settings,
		limits:   harvest.LimitsFromSettings(settings),
		opts:     o,
	}, nil
}

// DefinitionSummary is the list form of a harvest definition.
type DefinitionSummary struct {
	Name      string    `json:"name"`
	Comments  string    `json:"comments,omitempty"`
	Schedule  string    `json:"schedule"`
	NextDate  time.Time `json:"nextDate"`
	NumEvents int       `json:"numEvents"`
	Active    bool      `json:"active"`
	Domains   int       `json:"domains"`
}

// DefinitionDetail adds the member configurations to the summary.
type DefinitionDetail struct {
	DefinitionSummary
	Configurations []harvest.ConfigKey `json:"configurations"`
}

func summarizeDefinition(h *harvest.PartialHarvest) DefinitionSummary {
	return DefinitionSummary{
		Name:      h.Name,
		Comments:  h.Comments,
		Schedule:  h.Schedule.Name,
		NextDate:  h.NextDate,
		NumEvents: h.NumEvents,
		Active:    h.Active,
		Domains:   len(h.ConfigurationKeys()),
	}
}

// ListDefinitions returns all harvest definitions.
func (h *handler) ListDefinitions(c *gin.Context) {
	defs := h.registry.ListDefinitions()
	out := make([]DefinitionSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, summarizeDefinition(d))
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, out))
}

// GetDefinition returns one harvest definition with its configurations.
func (h *handler) GetDefinition(c *gin.Context) {
	def, err := h.registry.GetDefinition(c.Param("definition"))
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	keys := def.ConfigurationKeys()
	sort.Slice(keys, func(a, b int) bool { return keys[a].String() < keys[b].String() })
	c.JSON(http.StatusOK, NewAPIResponse(nil, DefinitionDetail{
		DefinitionSummary: summarizeDefinition(def),
		Configurations:    keys,
	}))
}

type createDefinitionRequest struct {
	Name     string `json:"name" binding:"required"`
	Comments string `json:"comments"`
	Schedule string `json:"schedule" binding:"required"`
}

// CreateDefinition creates an empty harvest definition on an existing
// schedule; seeds are added to it afterwards.
func (h *handler) CreateDefinition(c *gin.Context) {
	var req createDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg := fmt.Sprintf("Failed to decode definition spec, %s", err.Error())
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	if h.registry.DefinitionExists(req.Name) {
		errMsg := fmt.Sprintf("harvest definition %q already exists", req.Name)
		c.JSON(http.StatusConflict, NewAPIResponse(&errMsg, nil))
		return
	}
	sched, err := h.registry.GetSchedule(req.Schedule)
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	def, err := harvest.NewPartialHarvest(req.Name, req.Comments, sched, nil, time.Now())
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	if err := h.registry.PutDefinition(def); err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusInternalServerError, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusCreated, NewAPIResponse(nil, summarizeDefinition(def)))
}

type addSeedsRequest struct {
	Seeds        []string `json:"seeds" binding:"required"`
	TemplateName string   `json:"templateName" binding:"required"`
	MaxBytes     int64    `json:"maxBytes"`
	MaxObjects   int64    `json:"maxObjects"`
}

// AddSeeds adds seeds to a definition, creating domains, seed lists and
// configurations as needed. The whole batch is refused when any seed is
// invalid.
func (h *handler) AddSeeds(c *gin.Context) {
	def, err := h.registry.GetDefinition(c.Param("definition"))
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	var req addSeedsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg := fmt.Sprintf("Failed to decode seeds spec, %s", err.Error())
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	if err := h.registry.AddSeeds(def, req.Seeds, req.TemplateName, req.MaxBytes, req.MaxObjects); err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, summarizeDefinition(def)))
}

// PreviewJobs returns the jobs one event of the definition would generate,
// without advancing its schedule.
func (h *handler) PreviewJobs(c *gin.Context) {
	def, err := h.registry.GetDefinition(c.Param("definition"))
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	jobs := harvest.GenerateJobs(def.Name, def.NumEvents, def.Configurations(), h.limits, h.settings)
	c.JSON(http.StatusOK, NewAPIResponse(nil, jobs))
}

// DomainSummary is the list form of a domain.
type DomainSummary struct {
	Name           string `json:"name"`
	SeedLists      int    `json:"seedLists"`
	Configurations int    `json:"configurations"`
	Harvests       int    `json:"harvests"`
}

// ListDomains returns all known domains.
func (h *handler) ListDomains(c *gin.Context) {
	domains := h.registry.ListDomains()
	out := make([]DomainSummary, 0, len(domains))
	for _, d := range domains {
		out = append(out, DomainSummary{
			Name:           d.Name,
			SeedLists:      len(d.SeedLists),
			Configurations: len(d.Configurations),
			Harvests:       len(d.History.Infos),
		})
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, out))
}

// GetDomainHistory returns the harvest history summary of one domain.
func (h *handler) GetDomainHistory(c *gin.Context) {
	d, err := h.registry.GetDomain(c.Param("domain"))
	if err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusNotFound, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, d.History.Summarize()))
}

// ListSchedules returns all schedules.
func (h *handler) ListSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, NewAPIResponse(nil, h.registry.ListSchedules()))
}

type createScheduleRequest struct {
	Name     string `json:"name" binding:"required"`
	CronSpec string `json:"cronSpec"`
	// Interval is a Go duration string, e.g. "168h".
	Interval   string    `json:"interval"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	MaxRepeats int       `json:"maxRepeats"`
	Comments   string    `json:"comments"`
}

// CreateSchedule registers a new schedule.
func (h *handler) CreateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errMsg := fmt.Sprintf("Failed to decode schedule spec, %s", err.Error())
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	sched := &harvest.Schedule{
		Name:       req.Name,
		CronSpec:   req.CronSpec,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		MaxRepeats: req.MaxRepeats,
		Comments:   req.Comments,
	}
	if req.Interval != "" {
		interval, err := time.ParseDuration(req.Interval)
		if err != nil {
			errMsg := fmt.Sprintf("invalid interval %q, %s", req.Interval, err.Error())
			c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
			return
		}
		sched.Interval = interval
	}
	if err := h.registry.AddSchedule(sched); err != nil {
		errMsg := err.Error()
		c.JSON(http.StatusBadRequest, NewAPIResponse(&errMsg, nil))
		return
	}
	c.JSON(http.StatusCreated, NewAPIResponse(nil, sched))
}

// BatchStatus returns the status of the batch runs of this process, or an
// empty status when none have run.
func (h *handler) BatchStatus(c *gin.Context) {
	if h.opts.batchStatus == nil {
		c.JSON(http.StatusOK, NewAPIResponse(nil, &batch.Status{}))
		return
	}
	c.JSON(http.StatusOK, NewAPIResponse(nil, h.opts.batchStatus()))
}

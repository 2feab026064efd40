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

package harvest

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/netharvest/netharvest/pkg/crawl"
)

// Store is the registry of schedules, templates, domains and harvest
// definitions. It lives in memory and optionally snapshots to a JSON file;
// database persistence is a collaborator boundary, not part of this suite.
type Store struct {
	mu   sync.RWMutex
	file string

	schedules   map[string]*Schedule
	templates   map[string]string
	domains     map[string]*Domain
	definitions map[string]*PartialHarvest
}

// NewStore returns a store snapshotting to the given file; an empty file
// name disables persistence.
func NewStore(file string) *Store {
	return &Store{
		file:        file,
		schedules:   map[string]*Schedule{},
		templates:   map[string]string{},
		domains:     map[string]*Domain{},
		definitions: map[string]*PartialHarvest{},
	}
}

type definitionSnapshot struct {
	Name         string      `json:"name"`
	Comments     string      `json:"comments,omitempty"`
	ScheduleName string      `json:"scheduleName"`
	NextDate     time.Time   `json:"nextDate"`
	NumEvents    int         `json:"numEvents"`
	Active       bool        `json:"active"`
	Configs      []ConfigKey `json:"configs"`
}

type snapshot struct {
	Schedules   []*Schedule           `json:"schedules"`
	Templates   map[string]string     `json:"templates"`
	Domains     []*Domain             `json:"domains"`
	Definitions []*definitionSnapshot `json:"definitions"`
}

// Load reads the snapshot file, if any, and rebuilds the registry.
func (st *Store) Load() error {
	if st.file == "" {
		return nil
	}
	data, err := os.ReadFile(st.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot %s, %w", st.file, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot %s, %w", st.file, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range snap.Schedules {
		st.schedules[s.Name] = s
	}
	for name, content := range snap.Templates {
		st.templates[name] = content
	}
	for _, d := range snap.Domains {
		if d.History == nil {
			d.History = NewDomainHistory()
		}
		for _, cfg := range d.Configurations {
			cfg.AttachHistory(d.History)
		}
		st.domains[d.Name] = d
	}
	for _, ds := range snap.Definitions {
		sched, ok := st.schedules[ds.ScheduleName]
		if !ok {
			return fmt.Errorf("definition %q references unknown schedule %q", ds.Name, ds.ScheduleName)
		}
		h := &PartialHarvest{
			Name:      ds.Name,
			Comments:  ds.Comments,
			Schedule:  sched,
			NextDate:  ds.NextDate,
			NumEvents: ds.NumEvents,
			Active:    ds.Active,
			configs:   map[ConfigKey]*DomainConfiguration{},
		}
		for _, key := range ds.Configs {
			d, ok := st.domains[key.DomainName]
			if !ok {
				return fmt.Errorf("definition %q references unknown domain %q", ds.Name, key.DomainName)
			}
			cfg, err := d.GetConfiguration(key.ConfigName)
			if err != nil {
				return fmt.Errorf("definition %q: %w", ds.Name, err)
			}
			h.configs[key] = cfg
		}
		st.definitions[h.Name] = h
	}
	return nil
}

// save writes the snapshot; callers must hold the lock.
func (st *Store) save() error {
	if st.file == "" {
		return nil
	}
	snap := snapshot{Templates: st.templates}
	for _, s := range st.schedules {
		snap.Schedules = append(snap.Schedules, s)
	}
	for _, d := range st.domains {
		snap.Domains = append(snap.Domains, d)
	}
	for _, h := range st.definitions {
		ds := &definitionSnapshot{
			Name:         h.Name,
			Comments:     h.Comments,
			ScheduleName: h.Schedule.Name,
			NextDate:     h.NextDate,
			NumEvents:    h.NumEvents,
			Active:       h.Active,
		}
		for key := range h.configs {
			ds.Configs = append(ds.Configs, key)
		}
		sort.Slice(ds.Configs, func(a, b int) bool {
			return ds.Configs[a].String() < ds.Configs[b].String()
		})
		snap.Definitions = append(snap.Definitions, ds)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot, %w", err)
	}
	tmp := st.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot, %w", err)
	}
	return os.Rename(tmp, st.file)
}

// AddSchedule registers a schedule after validating it.
func (st *Store) AddSchedule(s *Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.schedules[s.Name]; ok {
		return fmt.Errorf("schedule %q already exists", s.Name)
	}
	st.schedules[s.Name] = s
	return st.save()
}

func (st *Store) GetSchedule(name string) (*Schedule, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.schedules[name]
	if !ok {
		return nil, fmt.Errorf("no such schedule %q", name)
	}
	return s, nil
}

func (st *Store) ListSchedules() []*Schedule {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Schedule, 0, len(st.schedules))
	for _, s := range st.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// PutTemplate registers or replaces a crawler order template.
func (st *Store) PutTemplate(name, content string) error {
	if name == "" {
		return fmt.Errorf("template name must not be empty")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.templates[name] = content
	return st.save()
}

func (st *Store) TemplateExists(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.templates[name]
	return ok
}

func (st *Store) ListTemplates() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.templates))
	for name := range st.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PutDomain registers or replaces a domain.
func (st *Store) PutDomain(d *Domain) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.domains[d.Name] = d
	return st.save()
}

func (st *Store) GetDomain(name string) (*Domain, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	d, ok := st.domains[name]
	if !ok {
		return nil, fmt.Errorf("no such domain %q", name)
	}
	return d, nil
}

func (st *Store) DomainExists(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.domains[name]
	return ok
}

func (st *Store) ListDomains() []*Domain {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Domain, 0, len(st.domains))
	for _, d := range st.domains {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// PutDefinition registers or updates a harvest definition.
func (st *Store) PutDefinition(h *PartialHarvest) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.definitions[h.Name] = h
	return st.save()
}

func (st *Store) GetDefinition(name string) (*PartialHarvest, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	h, ok := st.definitions[name]
	if !ok {
		return nil, fmt.Errorf("no such harvest definition %q", name)
	}
	return h, nil
}

func (st *Store) DefinitionExists(name string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.definitions[name]
	return ok
}

func (st *Store) ListDefinitions() []*PartialHarvest {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*PartialHarvest, 0, len(st.definitions))
	for _, h := range st.definitions {
		out = append(out, h)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// DueDefinitions returns the definitions due to run at the given time.
func (st *Store) DueDefinitions(now time.Time) []*PartialHarvest {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var due []*PartialHarvest
	for _, h := range st.definitions {
		if h.RunNow(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].Name < due[b].Name })
	return due
}

// eventConfigName builds the configuration/seed list name used by event
// harvests: <definition>_<template>_<bytes>Bytes_<objects>Objects.
func eventConfigName(definitionName, templateName string, maxBytes, maxObjects int64) string {
	bytesPart := "UnlimitedBytes"
	if maxBytes >= 0 {
		bytesPart = strconv.FormatInt(maxBytes, 10) + "Bytes"
	}
	objectsPart := "UnlimitedObjects"
	if maxObjects >= 0 {
		objectsPart = strconv.FormatInt(maxObjects, 10) + "Objects"
	}
	return definitionName + "_" + templateName + "_" + bytesPart + "_" + objectsPart
}

// normalizeSeed trims a seed and defaults its scheme to http. The second
// return is the registrable domain; an error means the seed is unusable.
func normalizeSeed(seed string) (string, string, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return "", "", nil
	}
	if !strings.HasPrefix(seed, "http://") && !strings.HasPrefix(seed, "https://") {
		seed = "http://" + seed
	}
	u, err := url.Parse(seed)
	if err != nil {
		return "", "", fmt.Errorf("invalid seed %q", seed)
	}
	domain := crawl.DomainNameFromHostname(u.Hostname())
	if domain == "" {
		return "", "", fmt.Errorf("no registrable domain in seed %q", seed)
	}
	return seed, domain, nil
}

// AddSeeds takes a list of seeds and creates any domains, seed lists and
// configurations needed to harvest them with the given template and
// per-domain limits, then attaches the configurations to the definition.
// Validation is all-or-nothing: if any seed is invalid, nothing changes.
func (st *Store) AddSeeds(h *PartialHarvest, seeds []string, templateName string, maxBytes, maxObjects int64) error {
	if templateName == "" {
		return fmt.Errorf("template name must not be empty")
	}
	if !st.TemplateExists(templateName) {
		return fmt.Errorf("no such template %q", templateName)
	}

	acceptedSeeds := map[string]map[string]bool{}
	var invalid []string
	for _, raw := range seeds {
		seed, domainName, err := normalizeSeed(raw)
		if err != nil {
			invalid = append(invalid, strings.TrimSpace(raw))
			continue
		}
		if seed == "" {
			continue
		}
		if acceptedSeeds[domainName] == nil {
			acceptedSeeds[domainName] = map[string]bool{}
		}
		acceptedSeeds[domainName][seed] = true
	}
	if len(invalid) > 0 {
		return fmt.Errorf("unable to create an event harvest, the following seeds are invalid: %s", strings.Join(invalid, ", "))
	}

	name := eventConfigName(h.Name, templateName, maxBytes, maxObjects)

	st.mu.Lock()
	defer st.mu.Unlock()
	for domainName, seedSet := range acceptedSeeds {
		d, ok := st.domains[domainName]
		if !ok {
			var err error
			d, err = DefaultDomain(domainName, templateName)
			if err != nil {
				return err
			}
			st.domains[domainName] = d
		}
		if !d.HasSeedList(name) {
			d.UpdateSeedList(&SeedList{Name: name})
		}

		var cfg *DomainConfiguration
		if d.HasConfiguration(name) {
			cfg, _ = d.GetConfiguration(name)
		} else {
			var err error
			cfg, err = NewDomainConfiguration(name, d, templateName, []string{name})
			if err != nil {
				return err
			}
			cfg.MaxBytes = maxBytes
			cfg.MaxObjects = maxObjects
			d.Configurations[cfg.Name] = cfg
		}

		// merge the new seeds into the existing list
		sl, _ := d.GetSeedList(name)
		for _, s := range sl.Seeds {
			seedSet[s] = true
		}
		merged := make([]string, 0, len(seedSet))
		for s := range seedSet {
			merged = append(merged, s)
		}
		sort.Strings(merged)
		d.UpdateSeedList(&SeedList{Name: name, Seeds: merged})

		h.PutConfiguration(cfg)
	}
	st.definitions[h.Name] = h
	return st.save()
}

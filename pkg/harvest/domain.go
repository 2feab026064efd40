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

import "fmt"

// SeedList is a named list of seed URLs of a domain.
type SeedList struct {
	Name  string   `json:"name"`
	Seeds []string `json:"seeds"`
}

// DefaultSeedListName is the seed list created for new domains.
const DefaultSeedListName = "defaultseeds"

// DefaultConfigName is the configuration created for new domains.
const DefaultConfigName = "defaultconfig"

// Domain aggregates everything known about one registrable domain: its seed
// lists, its harvest configurations, crawler traps and harvest history.
type Domain struct {
	Name           string                          `json:"name"`
	Comments       string                          `json:"comments,omitempty"`
	SeedLists      map[string]*SeedList            `json:"seedLists"`
	Configurations map[string]*DomainConfiguration `json:"configurations"`
	CrawlerTraps   []string                        `json:"crawlerTraps,omitempty"`
	History        *DomainHistory                  `json:"history"`
}

// NewDomain returns an empty domain.
func NewDomain(name string) (*Domain, error) {
	if name == "" {
		return nil, fmt.Errorf("domain name must not be empty")
	}
	return &Domain{
		Name:           name,
		SeedLists:      map[string]*SeedList{},
		Configurations: map[string]*DomainConfiguration{},
		History:        NewDomainHistory(),
	}, nil
}

// DefaultDomain returns a domain preloaded with a default seed list
// (http://www.<name>) and a default configuration using it.
func DefaultDomain(name, templateName string) (*Domain, error) {
	d, err := NewDomain(name)
	if err != nil {
		return nil, err
	}
	sl := &SeedList{Name: DefaultSeedListName, Seeds: []string{"http://www." + name}}
	d.SeedLists[sl.Name] = sl
	cfg, err := NewDomainConfiguration(DefaultConfigName, d, templateName, []string{sl.Name})
	if err != nil {
		return nil, err
	}
	d.Configurations[cfg.Name] = cfg
	return d, nil
}

func (d *Domain) HasSeedList(name string) bool {
	_, ok := d.SeedLists[name]
	return ok
}

func (d *Domain) GetSeedList(name string) (*SeedList, error) {
	sl, ok := d.SeedLists[name]
	if !ok {
		return nil, fmt.Errorf("no seed list %q in domain %q", name, d.Name)
	}
	return sl, nil
}

// AddSeedList registers a seed list, refusing duplicates.
func (d *Domain) AddSeedList(sl *SeedList) error {
	if _, ok := d.SeedLists[sl.Name]; ok {
		return fmt.Errorf("seed list %q already exists in domain %q", sl.Name, d.Name)
	}
	d.SeedLists[sl.Name] = sl
	return nil
}

// UpdateSeedList replaces or creates the seed list of the same name.
func (d *Domain) UpdateSeedList(sl *SeedList) {
	d.SeedLists[sl.Name] = sl
}

func (d *Domain) HasConfiguration(name string) bool {
	_, ok := d.Configurations[name]
	return ok
}

func (d *Domain) GetConfiguration(name string) (*DomainConfiguration, error) {
	cfg, ok := d.Configurations[name]
	if !ok {
		return nil, fmt.Errorf("no configuration %q in domain %q", name, d.Name)
	}
	return cfg, nil
}

// AddConfiguration registers a configuration, refusing duplicates.
func (d *Domain) AddConfiguration(cfg *DomainConfiguration) error {
	if _, ok := d.Configurations[cfg.Name]; ok {
		return fmt.Errorf("configuration %q already exists in domain %q", cfg.Name, d.Name)
	}
	d.Configurations[cfg.Name] = cfg
	return nil
}

// RecordHarvest appends a harvest outcome to the domain history.
func (d *Domain) RecordHarvest(info HarvestInfo) {
	if d.History == nil {
		d.History = NewDomainHistory()
	}
	d.History.Add(info)
}

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

// Package repository is the archive store boundary: replicas hold the
// harvested container files, verified by checksum.
package repository

import (
	"fmt"
	"strings"
)

// ReplicaType tells what kind of copy a replica keeps: full content
// (bitarchive) or checksums only.
type ReplicaType int

const (
	// ReplicaTypeNone marks an unconfigured or unknown replica type.
	ReplicaTypeNone ReplicaType = iota
	ReplicaTypeBitarchive
	ReplicaTypeChecksum
)

func (t ReplicaType) String() string {
	switch t {
	case ReplicaTypeBitarchive:
		return "bitarchive"
	case ReplicaTypeChecksum:
		return "checksum"
	default:
		return "none"
	}
}

// ReplicaTypeFromOrdinal maps a stored ordinal back to its type.
func ReplicaTypeFromOrdinal(i int) (ReplicaType, error) {
	switch i {
	case 0:
		return ReplicaTypeNone, nil
	case 1:
		return ReplicaTypeBitarchive, nil
	case 2:
		return ReplicaTypeChecksum, nil
	default:
		return ReplicaTypeNone, fmt.Errorf("no replica type with ordinal %d", i)
	}
}

// ReplicaTypeFromSetting parses a configured replica type; anything
// unrecognized is ReplicaTypeNone.
func ReplicaTypeFromSetting(s string) ReplicaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bitarchive":
		return ReplicaTypeBitarchive
	case "checksum":
		return ReplicaTypeChecksum
	default:
		return ReplicaTypeNone
	}
}

// Replica identifies one copy of the archive.
type Replica struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type ReplicaType `json:"type"`
}

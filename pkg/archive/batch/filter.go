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

package batch

import (
	"regexp"
	"strings"

	"github.com/netharvest/netharvest/pkg/archive"
)

// Filter decides whether a record is handed to the job.
type Filter func(*archive.Record) bool

// NoFilter accepts every record.
func NoFilter(*archive.Record) bool { return true }

// ByType accepts records of any of the given types.
func ByType(types ...string) Filter {
	return func(rec *archive.Record) bool {
		for _, t := range types {
			if rec.Type == t {
				return true
			}
		}
		return false
	}
}

// ResponsesOnly accepts harvested content records: WARC responses and ARC
// response records.
func ResponsesOnly() Filter {
	return ByType(archive.TypeResponse)
}

// ExcludeMetadata accepts everything but metadata and container-level
// records.
func ExcludeMetadata() Filter {
	skip := ByType(archive.TypeMetadata, archive.TypeWarcinfo, archive.TypeFiledesc)
	return func(rec *archive.Record) bool { return !skip(rec) }
}

// MIMEPrefix accepts records whose content type starts with the prefix.
func MIMEPrefix(prefix string) Filter {
	return func(rec *archive.Record) bool {
		return strings.HasPrefix(rec.MIMEType, prefix)
	}
}

// URLMatches accepts records whose target URI matches the expression.
func URLMatches(re *regexp.Regexp) Filter {
	return func(rec *archive.Record) bool {
		return re.MatchString(rec.URL)
	}
}

// And accepts records accepted by all filters.
func And(filters ...Filter) Filter {
	return func(rec *archive.Record) bool {
		for _, f := range filters {
			if !f(rec) {
				return false
			}
		}
		return true
	}
}

// Or accepts records accepted by any filter.
func Or(filters ...Filter) Filter {
	return func(rec *archive.Record) bool {
		for _, f := range filters {
			if f(rec) {
				return true
			}
		}
		return false
	}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return func(rec *archive.Record) bool { return !f(rec) }
}

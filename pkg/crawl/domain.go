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

package crawl

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DomainNameFromHostname returns the registrable domain of a hostname, e.g.
// x.y.z -> y.z, y.z -> y.z. IP addresses are returned whole. The empty
// string is returned when no registrable domain can be derived.
func DomainNameFromHostname(hostname string) string {
	if hostname == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(hostname, "."))
	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

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

import "net/url"

// DefaultQueueKey is returned for URIs we cannot figure out, such as
// about:blank.
const DefaultQueueKey = "default..."

// QueueKey maps a candidate URI onto a frontier queue name. The key is the
// registrable domain (or the whole IP address) of the URI host, with a
// #<port> suffix when the URI names a non-empty port:
//
//	http://x.y.z/a      -> y.z
//	http://y.z:8080/a   -> y.z#8080
//	http://10.0.0.2/a   -> 10.0.0.2
//
// Hosts without a registrable domain keep their hostname as the key.
func QueueKey(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Hostname() == "" {
		return DefaultQueueKey
	}
	key := u.Hostname()
	if domain := DomainNameFromHostname(key); domain != "" {
		key = domain
	}
	if port := u.Port(); port != "" {
		key += "#" + port
	}
	return key
}

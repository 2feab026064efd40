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

// Package wayback builds and maintains the playback index over stored
// archive files: URL canonicalization, CDX generation and dedup crawl-log
// adaptation.
package wayback

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	wwwPrefix   = regexp.MustCompile(`^www\d*\.`)
	pathSession = regexp.MustCompile(`(?i);jsessionid=[0-9a-z]{32}$`)

	// query parameters that only identify a session, never content
	sessionParam = regexp.MustCompile(`(?i)^(jsessionid|phpsessid|sessionid|sid)=[0-9a-z]{32}$`)
	aspSession   = regexp.MustCompile(`(?i)^aspsessionid[a-z]{8}=[a-z]{24}$`)
	cfSession    = regexp.MustCompile(`(?i)^(cfid|cftoken)=`)
)

// Canonicalizer reduces capture URLs to aggressive index keys so that
// lookups hit the same key regardless of session noise, www prefixes and
// escaping differences.
type Canonicalizer struct{}

func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

// URLKey returns the index key of a URL: no scheme, lowercased, www-prefix
// and default port dropped, session ids stripped, %20 as +, runs of slashes
// collapsed. dns: records pass through untouched.
func (c *Canonicalizer) URLKey(raw string) string {
	if strings.HasPrefix(raw, "dns:") {
		return raw
	}
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	host := wwwPrefix.ReplaceAllString(strings.ToLower(u.Hostname()), "")

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}

	path := pathSession.ReplaceAllString(u.EscapedPath(), "")
	path = strings.ReplaceAll(path, "%20", "+")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if path == "" {
		path = "/"
	}

	var sb strings.Builder
	sb.WriteString(host)
	if port != "" {
		sb.WriteString(":")
		sb.WriteString(port)
	}
	sb.WriteString(path)
	if q := stripSessionParams(u.RawQuery); q != "" {
		sb.WriteString("?")
		sb.WriteString(q)
	}
	return strings.ToLower(sb.String())
}

// stripSessionParams removes session-identifying query parameters,
// preserving the order of the rest.
func stripSessionParams(query string) string {
	if query == "" {
		return ""
	}
	parts := strings.Split(query, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || sessionParam.MatchString(p) || aspSession.MatchString(p) || cfSession.MatchString(p) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

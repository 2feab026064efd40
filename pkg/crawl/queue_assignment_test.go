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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainNameFromHostname(t *testing.T) {
	assert.Equal(t, "example.com", DomainNameFromHostname("www.example.com"))
	assert.Equal(t, "example.com", DomainNameFromHostname("a.b.example.com"))
	assert.Equal(t, "example.com", DomainNameFromHostname("example.com"))
	assert.Equal(t, "example.co.uk", DomainNameFromHostname("shop.example.co.uk"))
	assert.Equal(t, "10.11.12.13", DomainNameFromHostname("10.11.12.13"))
	assert.Equal(t, "", DomainNameFromHostname("localhost"))
	assert.Equal(t, "", DomainNameFromHostname(""))
}

func TestQueueKey(t *testing.T) {
	assert.Equal(t, "example.com", QueueKey("http://x.y.example.com/path"))
	assert.Equal(t, "example.com#8080", QueueKey("http://www.example.com:8080/path"))
	assert.Equal(t, "10.0.0.2", QueueKey("https://10.0.0.2/index.html"))
	assert.Equal(t, DefaultQueueKey, QueueKey("about:blank"))
	assert.Equal(t, DefaultQueueKey, QueueKey("::::"))
	// hosts without a registrable domain keep the hostname
	assert.Equal(t, "localhost", QueueKey("http://localhost/x"))
}

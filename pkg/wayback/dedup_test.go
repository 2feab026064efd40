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

package wayback

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dedupCrawlLine = "2009-05-25T13:00:00.992Z   200       " +
	"9717 https://wiki.statsbiblioteket.dk/wiki/summa/img/draft.png LLEE " +
	"https://wiki.statsbiblioteket.dk/wiki/summa/css/screen.css image/png #016 " +
	"20090525130000915+76 sha1:AXH2IFNXC4MUT26SRHRJZHGR3FDAJDNR - duplicate:\"1-1-20090513141823-00008-" +
	"sb-test-har-001.statsbiblioteket.dk.arc,22962264\",content-size:9969"

const dedupCrawlLine2 = "2011-05-11T16:41:49.968Z 200 50436 http://webtv.metropol.dk/swf/webtv_promohorizontal.swf LLX " +
	"http://www.sporten.dk/sport/fodbold application/x-shockwave-flash #008 20110511164149870+61 " +
	"sha1:KBHBHEUCX5CN7KB3P2ZVBHGCCIFJNIWH - le:IOException@ExtractorSWF,duplicate:" +
	"\"118657-119-20110428163750-00001-kb-prod-har-004.kb.dk.arc,69676377\",content-size:50842"

func TestAdaptLine(t *testing.T) {
	a := NewDedupAdapter()

	cdx, err := a.AdaptLine(dedupCrawlLine)
	require.NoError(t, err)
	fields := strings.Fields(cdx)
	require.Len(t, fields, 9)
	assert.Equal(t, "wiki.statsbiblioteket.dk/wiki/summa/img/draft.png", fields[0])
	assert.Equal(t, "20090525130000", fields[1])
	assert.Equal(t, "https://wiki.statsbiblioteket.dk/wiki/summa/img/draft.png", fields[2])
	assert.Equal(t, "image/png", fields[3])
	assert.Equal(t, "200", fields[4])
	assert.Equal(t, "AXH2IFNXC4MUT26SRHRJZHGR3FDAJDNR", fields[5])
	assert.Equal(t, "22962264", fields[7])
	assert.Equal(t, "1-1-20090513141823-00008-sb-test-har-001.statsbiblioteket.dk.arc", fields[8])
}

func TestAdaptLineOtherAnnotationsFirst(t *testing.T) {
	a := NewDedupAdapter()

	// the duplicate annotation sits behind a processor-error annotation
	cdx, err := a.AdaptLine(dedupCrawlLine2)
	require.NoError(t, err)
	fields := strings.Fields(cdx)
	require.Len(t, fields, 9)
	assert.Equal(t, "69676377", fields[7])
	assert.Equal(t, "118657-119-20110428163750-00001-kb-prod-har-004.kb.dk.arc", fields[8])
	assert.Equal(t, "200", fields[4])
}

func TestAdaptLineNotADuplicate(t *testing.T) {
	a := NewDedupAdapter()
	cdx, err := a.AdaptLine("2009-05-25T13:00:00.992Z 200 9717 http://example.com/ L - text/html #01 20090525130000915+76 sha1:XYZ - -")
	require.NoError(t, err)
	assert.Empty(t, cdx)
}

func TestAdaptLineMalformed(t *testing.T) {
	a := NewDedupAdapter()
	_, err := a.AdaptLine("too short duplicate:\"file.arc,123\"")
	assert.Error(t, err)
}

func TestAdaptStream(t *testing.T) {
	log := strings.Join([]string{
		dedupCrawlLine,
		"2009-05-25T13:00:01.000Z 200 512 http://example.com/ L - text/html #01 20090525130001000+10 sha1:ABC - -",
		dedupCrawlLine2,
		"",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, NewDedupAdapter().AdaptStream(strings.NewReader(log), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "only duplicate lines are adapted")
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 9)
	}
}

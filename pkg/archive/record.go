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

// Package archive streams records out of web-archive container files, both
// WARC (ISO 28500) and the legacy ARC format, plain or gzip compressed.
package archive

import "io"

// Record types. WARC defines more; these are the ones the suite acts on.
// ARC records are mapped onto "filedesc" (the version block) and "response".
const (
	TypeWarcinfo   = "warcinfo"
	TypeRequest    = "request"
	TypeResponse   = "response"
	TypeMetadata   = "metadata"
	TypeResource   = "resource"
	TypeRevisit    = "revisit"
	TypeConversion = "conversion"
	TypeFiledesc   = "filedesc"
)

// Record is one archive record positioned in its container file.
type Record struct {
	// Offset is the byte offset of the record start in the container file.
	// For compressed containers this is the offset of the gzip member the
	// record lives in, so processing can resume exactly here.
	Offset int64
	// Type is the record type, lower case.
	Type string
	// URL is the record's target URI, empty for warcinfo records.
	URL string
	// Date is the capture timestamp as written in the container.
	Date string
	// MIMEType is the content type of the record block.
	MIMEType string
	// IP is the address the content was fetched from, when recorded.
	IP string
	// ContentLength is the size of the record block in bytes.
	ContentLength int64
	// Header holds all named header fields of the record. ARC records,
	// which have positional headers only, leave it nil.
	Header map[string]string
	// Body reads the record block. It is only valid until the next call to
	// Reader.Next; unread remainder is skipped automatically.
	Body io.Reader
}

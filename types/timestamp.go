// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Timestamp is a point in time rendered in a named location, the way it is
// printed on receipts and in anchor payloads.
type Timestamp struct {
	t   time.Time
	loc *time.Location
}

// NewTimestamp returns t as seen in loc. A nil loc means UTC.
func NewTimestamp(t time.Time, loc *time.Location) Timestamp {
	if loc == nil {
		loc = time.UTC
	}
	return Timestamp{t: t.In(loc), loc: loc}
}

// Time returns the underlying instant.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// Readable renders e.g. "2022-07-06 09:08:00 (Europe/Zurich : UTC+0200)".
func (ts Timestamp) Readable() string {
	return fmt.Sprintf("%s (%s : UTC%s)", ts.t.Format("2006-01-02 15:04:05"), ts.loc, ts.t.Format("-0700"))
}

// Compact is Readable without spaces and colons, e.g.
// "2022-07-06090800(Europe/ZurichUTC+0200)". It is the form hashed into
// leaves.
func (ts Timestamp) Compact() string {
	return strings.NewReplacer(" ", "", ":", "").Replace(ts.Readable())
}

var compactRE = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(\d{6})\((.*)UTC([+-]\d{4})\)$`)

// ParseCompact recovers the instant from a compact timestamp.
func ParseCompact(s string) (time.Time, error) {
	m := compactRE.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", s)
	}
	return time.Parse("2006-01-02150405-0700", m[1]+m[2]+m[4])
}

// ReadableFromCompact turns a compact timestamp back into its readable form.
func ReadableFromCompact(s string) (string, error) {
	m := compactRE.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("malformed timestamp %q", s)
	}
	hms := m[2][0:2] + ":" + m[2][2:4] + ":" + m[2][4:6]
	return fmt.Sprintf("%s %s (%s : UTC%s)", m[1], hms, m[3], m[4]), nil
}

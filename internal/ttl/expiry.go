/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package ttl

import (
	"math"
	"time"
)

// Nominal unit lengths. Months and years are fixed approximations, not
// calendar arithmetic: a month is always 30 days and a year always 365 days,
// leap years included.
const (
	Minute = time.Minute
	Day    = 24 * time.Hour
	Month  = 30 * Day
	Year   = 365 * Day
)

// TimeSource records which piece of filesystem metadata a creation
// timestamp was read from.
type TimeSource string

const (
	// SourceBirthTime is the directory's creation (birth) time.
	SourceBirthTime TimeSource = "BirthTime"

	// SourceModTime is the last-modified time, used only where the platform
	// or filesystem cannot report a birth time. Modification time moves when
	// entries are added to or removed from the directory, which restarts the
	// TTL clock.
	SourceModTime TimeSource = "ModTime"
)

// UnitDuration returns the nominal length of one unit.
func UnitDuration(u Unit) time.Duration {
	switch u {
	case UnitMinute:
		return Minute
	case UnitDay:
		return Day
	case UnitMonth:
		return Month
	case UnitYear:
		return Year
	default:
		return 0
	}
}

// Duration converts the value to a duration. It returns false when the
// result does not fit in a time.Duration.
func (v Value) Duration() (time.Duration, bool) {
	unit := UnitDuration(v.Unit)
	if unit <= 0 || v.Quantity == 0 {
		return 0, false
	}
	if v.Quantity > uint64(math.MaxInt64/int64(unit)) {
		return 0, false
	}
	return time.Duration(v.Quantity) * unit, true
}

// ExpiresAt returns createdAt plus the TTL. The second result is false when
// the TTL is too large to represent, in which case the entry never expires.
func ExpiresAt(v Value, createdAt time.Time) (time.Time, bool) {
	d, ok := v.Duration()
	if !ok {
		return time.Time{}, false
	}
	return createdAt.Add(d), true
}

// IsExpired reports whether now is at or past the expiry instant of a
// directory created at createdAt. The boundary is inclusive.
func IsExpired(v Value, createdAt, now time.Time) bool {
	expiresAt, ok := ExpiresAt(v, createdAt)
	if !ok {
		return false
	}
	return !now.Before(expiresAt)
}

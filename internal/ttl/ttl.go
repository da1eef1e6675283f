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
	"strconv"
	"strings"
)

// Key is the literal prefix every TTL directory name starts with.
const Key = "ttl="

// Unit is the time unit of a TTL value.
type Unit int

const (
	// UnitMinute is encoded as "min".
	UnitMinute Unit = iota + 1
	// UnitDay is encoded as "d".
	UnitDay
	// UnitMonth is encoded as "m" and counts nominal 30-day months.
	UnitMonth
	// UnitYear is encoded as "y" and counts nominal 365-day years.
	UnitYear
)

// unitTokens is ordered so that "min" is matched before "m".
var unitTokens = []struct {
	token string
	unit  Unit
}{
	{"min", UnitMinute},
	{"d", UnitDay},
	{"m", UnitMonth},
	{"y", UnitYear},
}

// String returns the token used for the unit in directory names.
func (u Unit) String() string {
	for _, t := range unitTokens {
		if t.unit == u {
			return t.token
		}
	}
	return "unknown"
}

// Value is a parsed time-to-live. Quantity is always greater than zero.
type Value struct {
	Quantity uint64
	Unit     Unit
}

// String renders the value in its canonical directory-name form.
func (v Value) String() string {
	return Key + strconv.FormatUint(v.Quantity, 10) + v.Unit.String()
}

// Parse classifies a directory base name. It returns ok=false for any name
// that is not exactly "ttl=<digits><unit>" with a positive quantity; such
// names are simply not TTL directories.
func Parse(name string) (Value, bool) {
	rest, found := strings.CutPrefix(name, Key)
	if !found {
		return Value{}, false
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return Value{}, false
	}

	// ParseUint fails on overflow, which is a miss rather than an error.
	quantity, err := strconv.ParseUint(rest[:digits], 10, 64)
	if err != nil || quantity == 0 {
		return Value{}, false
	}

	suffix := rest[digits:]
	for _, t := range unitTokens {
		if suffix == t.token {
			return Value{Quantity: quantity, Unit: t.unit}, true
		}
	}

	return Value{}, false
}

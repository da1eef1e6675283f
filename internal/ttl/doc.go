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

// Package ttl parses the TTL naming convention used for self-expiring
// directories and decides whether a directory has expired.
//
// A directory opts in to expiry by being named exactly:
//
//	ttl=<digits><unit>
//
// where unit is one of:
//
//	min  minutes
//	d    days (24h)
//	m    months (nominal 30 days)
//	y    years (nominal 365 days)
//
// Tokens are case sensitive. The quantity must be greater than zero; leading
// zeros are accepted. Any other name, including names with extra characters
// before or after the pattern, is not a TTL directory.
//
// Month and year lengths are fixed approximations. They do not follow the
// calendar and leap years are not modelled, so "ttl=1y" always means 365 days.
//
// Expiry is computed as:
//
//	expiresAt = createdAt + duration(ttl)
//	expired   = now >= expiresAt
//
// The caller always supplies now, which keeps IsExpired a pure function.
package ttl

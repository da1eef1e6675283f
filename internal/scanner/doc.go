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

// Package scanner discovers TTL directories directly under a watched root.
//
// Only the first level is examined. For every child that is a directory and
// whose name parses as a TTL (see package ttl), the scanner reads the
// directory's creation time and yields an Entry.
//
// Creation time sources:
//
//	linux    statx(2) STATX_BTIME; modification time when the kernel or
//	         filesystem does not report a birth time
//	darwin   st_birthtimespec
//	windows  NTFS creation time
//	other    modification time
//
// Every Entry records which source was used in its TimeSource field. A
// modification-time fallback is weaker: adding or removing files inside the
// directory moves it forward and restarts the TTL clock. Set
// Options.RequireBirthTime to refuse the fallback.
package scanner

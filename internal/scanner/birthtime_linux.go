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

//go:build linux

package scanner

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mikelane/ttlsweeper/internal/ttl"
)

// CreationTime reads the birth time of path with statx(2). Kernels older than
// 4.11 and filesystems that do not record STATX_BTIME fall back to the
// modification time, reported as ttl.SourceModTime.
func CreationTime(path string) (time.Time, ttl.TimeSource, error) {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME|unix.STATX_MTIME, &stx)
	if errors.Is(err, unix.ENOSYS) {
		return modTime(path)
	}
	if err != nil {
		return time.Time{}, "", &os.PathError{Op: "statx", Path: path, Err: err}
	}

	if stx.Mask&unix.STATX_BTIME != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), ttl.SourceBirthTime, nil
	}
	return time.Unix(stx.Mtime.Sec, int64(stx.Mtime.Nsec)), ttl.SourceModTime, nil
}

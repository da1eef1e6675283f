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

package scanner

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/mikelane/ttlsweeper/internal/ttl"
)

// DefaultBatchSize is the number of directory entries read per ReadDir call.
const DefaultBatchSize = 256

var (
	// ErrNotDirectory is returned when a watched root exists but is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNoBirthTime is reported for entries whose filesystem cannot supply a
	// creation time when Options.RequireBirthTime is set.
	ErrNoBirthTime = errors.New("filesystem does not report a birth time")
)

// RootError reports a watched root that could not be listed. The root
// contributes no entries for the cycle.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("watched root %q: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

// EntryError reports a single TTL directory whose metadata could not be read.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("reading metadata of %q: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Entry is one TTL directory found directly under a watched root.
type Entry struct {
	Root       string
	Path       string
	Name       string
	TTL        ttl.Value
	CreatedAt  time.Time
	TimeSource ttl.TimeSource
}

// BirthTimeFunc reads the creation timestamp of path and reports which
// metadata field it came from.
type BirthTimeFunc func(path string) (time.Time, ttl.TimeSource, error)

// Options configures a Scanner.
type Options struct {
	// RequireBirthTime turns the modification-time fallback into a
	// per-entry EntryError wrapping ErrNoBirthTime.
	RequireBirthTime bool

	// BatchSize bounds how many directory entries are held in memory at once.
	// Zero means DefaultBatchSize.
	BatchSize int

	// BirthTime overrides how creation timestamps are read. Nil means
	// CreationTime.
	BirthTime BirthTimeFunc
}

// Scanner lists the TTL directories directly under a root.
type Scanner struct {
	requireBirthTime bool
	batchSize        int
	birthTime        BirthTimeFunc
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	s := &Scanner{
		requireBirthTime: opts.RequireBirthTime,
		batchSize:        opts.BatchSize,
		birthTime:        opts.BirthTime,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.birthTime == nil {
		s.birthTime = CreationTime
	}
	return s
}

// Scan checks that root is a directory and returns a lazy sequence of the
// TTL directories directly beneath it. Nothing below the first level is
// visited. Children that are not directories (symlinks included) or whose
// names are not TTL names are left out without an error.
//
// Each pass over the sequence lists the directory again. A per-entry
// metadata failure is yielded as an *EntryError and the scan continues; a
// listing failure is yielded as a *RootError and ends the sequence.
func (s *Scanner) Scan(root string) (iter.Seq2[Entry, error], error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &RootError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &RootError{Root: root, Err: ErrNotDirectory}
	}

	return func(yield func(Entry, error) bool) {
		dir, err := os.Open(root)
		if err != nil {
			yield(Entry{Root: root, Path: root}, &RootError{Root: root, Err: err})
			return
		}
		defer dir.Close()

		for {
			dirents, readErr := dir.ReadDir(s.batchSize)
			for _, d := range dirents {
				if !d.IsDir() {
					continue
				}
				value, ok := ttl.Parse(d.Name())
				if !ok {
					continue
				}
				if !yield(s.entry(root, d.Name(), value)) {
					return
				}
			}

			if readErr != nil {
				if !errors.Is(readErr, io.EOF) {
					yield(Entry{Root: root, Path: root}, &RootError{Root: root, Err: readErr})
				}
				return
			}
		}
	}, nil
}

func (s *Scanner) entry(root, name string, value ttl.Value) (Entry, error) {
	e := Entry{
		Root: root,
		Path: filepath.Join(root, name),
		Name: name,
		TTL:  value,
	}

	createdAt, source, err := s.birthTime(e.Path)
	if err != nil {
		return e, &EntryError{Path: e.Path, Err: err}
	}
	e.TimeSource = source
	if s.requireBirthTime && source != ttl.SourceBirthTime {
		return e, &EntryError{Path: e.Path, Err: ErrNoBirthTime}
	}
	e.CreatedAt = createdAt
	return e, nil
}

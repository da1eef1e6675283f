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

// Package usage measures how much disk space expired directories occupy.
package usage

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Estimator sums apparent file sizes under a directory and keeps a running
// total of everything measured. It is safe for concurrent use.
type Estimator struct {
	mu    sync.Mutex
	total int64
}

// NewEstimator creates an Estimator with a zero total.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// DirSize returns the summed size of regular files below path. Symlinks are
// counted by their own size, never followed. Entries that disappear while
// walking are ignored; other walk errors are returned along with the size
// counted so far.
func (e *Estimator) DirSize(path string) (*resource.Quantity, error) {
	var size int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		size += info.Size()
		return nil
	})

	return resource.NewQuantity(size, resource.BinarySI), err
}

// Track adds a measured size to the running total.
func (e *Estimator) Track(q *resource.Quantity) {
	if q == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.total += q.Value()
}

// Total returns everything tracked so far.
func (e *Estimator) Total() *resource.Quantity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return resource.NewQuantity(e.total, resource.BinarySI)
}

// Format renders a byte count the way Kubernetes renders quantities,
// for example "1536Mi".
func Format(bytes int64) string {
	return resource.NewQuantity(bytes, resource.BinarySI).String()
}

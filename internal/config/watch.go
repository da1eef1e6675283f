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

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"sigs.k8s.io/controller-runtime/pkg/log"

	sweeperv1alpha1 "github.com/mikelane/ttlsweeper/api/v1alpha1"
)

// ChangeFunc receives every successfully reloaded configuration.
type ChangeFunc func(*sweeperv1alpha1.SweeperConfiguration)

// Watch reloads the file at path whenever it changes until ctx is done.
//
// The parent directory is watched rather than the file so that editors that
// replace the file and ConfigMap volumes that swap a "..data" symlink are
// both picked up.
func Watch(ctx context.Context, path string, onChange ChangeFunc) error {
	logger := log.FromContext(ctx).WithValues("config", path)

	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error(closeErr, "Failed to close config watcher")
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}
	logger.Info("Watching config for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, path) {
				continue
			}
			cfg, err := Load(ctx, path)
			if err != nil {
				logger.Error(err, "Ignoring invalid config change")
				continue
			}
			logger.Info("Reloaded config", "paths", cfg.PathsToWatch)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(err, "Config watcher error")
		}
	}
}

func relevant(ev fsnotify.Event, path string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == path || strings.HasPrefix(filepath.Base(name), "..data")
}

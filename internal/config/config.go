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
	"os"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"

	sweeperv1alpha1 "github.com/mikelane/ttlsweeper/api/v1alpha1"
)

// Load reads the file at path, applies defaults and validates it.
func Load(ctx context.Context, path string) (*sweeperv1alpha1.SweeperConfiguration, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg, err := Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document, applies defaults and validates it.
// Duplicate roots are logged and dropped; the first occurrence keeps its
// position.
func Parse(ctx context.Context, data []byte) (*sweeperv1alpha1.SweeperConfiguration, error) {
	cfg := &sweeperv1alpha1.SweeperConfiguration{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}

	if errs := validateTypeMeta(cfg); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	cfg.SetDefaults()

	var dups []string
	cfg.PathsToWatch, dups = dedupe(cfg.PathsToWatch)
	if len(dups) > 0 {
		log.FromContext(ctx).Info("Ignoring duplicate watched paths", "paths", dups)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs.ToAggregate()
	}
	return cfg, nil
}

// Validate checks a defaulted configuration.
func Validate(cfg *sweeperv1alpha1.SweeperConfiguration) field.ErrorList {
	var errs field.ErrorList

	pathsPath := field.NewPath("pathsToWatch")
	if len(cfg.PathsToWatch) == 0 {
		errs = append(errs, field.Required(pathsPath, "at least one path must be watched"))
	}
	for i, p := range cfg.PathsToWatch {
		if p == "" {
			errs = append(errs, field.Invalid(pathsPath.Index(i), p, "must not be empty"))
		}
	}

	if cfg.Interval.Duration <= 0 {
		errs = append(errs, field.Invalid(field.NewPath("interval"), cfg.Interval.Duration.String(), "must be positive"))
	}
	if cfg.Workers < 1 {
		errs = append(errs, field.Invalid(field.NewPath("workers"), cfg.Workers, "must be at least 1"))
	}
	if cfg.TriggerSecret != "" && !cfg.ServerEnabled() {
		errs = append(errs, field.Forbidden(field.NewPath("triggerSecret"), "requires bindAddress"))
	}

	return errs
}

func validateTypeMeta(cfg *sweeperv1alpha1.SweeperConfiguration) field.ErrorList {
	var errs field.ErrorList
	want := sweeperv1alpha1.SweeperConfigurationKind
	if cfg.APIVersion != "" && cfg.APIVersion != want.GroupVersion().String() {
		errs = append(errs, field.NotSupported(field.NewPath("apiVersion"), cfg.APIVersion,
			[]string{want.GroupVersion().String()}))
	}
	if cfg.Kind != "" && cfg.Kind != want.Kind {
		errs = append(errs, field.NotSupported(field.NewPath("kind"), cfg.Kind, []string{want.Kind}))
	}
	return errs
}

func dedupe(paths []string) (unique, dups []string) {
	seen := sets.New[string]()
	unique = make([]string, 0, len(paths))
	for _, p := range paths {
		if seen.Has(p) {
			dups = append(dups, p)
			continue
		}
		seen.Insert(p)
		unique = append(unique, p)
	}
	return unique, dups
}

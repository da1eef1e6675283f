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

package v1alpha1

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// DefaultInterval is how often the sweeper runs when no interval is set.
	DefaultInterval = 5 * time.Minute

	// DefaultWorkers is how many roots are swept in parallel when unset.
	DefaultWorkers = 4
)

// SweeperConfiguration is the file format read by ttlsweeper.
//
// Example:
//
//	apiVersion: config.ttlsweeper.io/v1alpha1
//	kind: SweeperConfiguration
//	pathsToWatch:
//	  - /var/tmp/builds
//	  - /srv/scratch
//	interval: 10m
type SweeperConfiguration struct {
	// apiVersion and kind are optional; when present they must match.
	metav1.TypeMeta `json:",inline"`

	// PathsToWatch lists the roots whose immediate subdirectories are
	// candidates for expiry. Order is preserved.
	// +optional
	PathsToWatch []string `json:"pathsToWatch,omitempty"`

	// LegacyPathsToWatch accepts the snake_case key used by earlier
	// releases. Its entries are appended to PathsToWatch by SetDefaults.
	// +optional
	LegacyPathsToWatch []string `json:"paths_to_watch,omitempty"`

	// Interval is the time between cleanup cycles.
	// +kubebuilder:default="5m"
	// +optional
	Interval metav1.Duration `json:"interval,omitempty"`

	// Workers bounds how many roots are swept in parallel.
	// +kubebuilder:validation:Minimum=1
	// +optional
	Workers int `json:"workers,omitempty"`

	// DryRun reports expired directories without deleting them.
	// +optional
	DryRun bool `json:"dryRun,omitempty"`

	// RequireBirthTime refuses to fall back to modification time on
	// filesystems that do not record creation time.
	// +optional
	RequireBirthTime bool `json:"requireBirthTime,omitempty"`

	// MeasureReclaimed sizes expired directories before deleting them.
	// +optional
	MeasureReclaimed bool `json:"measureReclaimed,omitempty"`

	// BindAddress serves /healthz, /readyz, /metrics and /sweep, e.g.
	// ":8080". Empty disables the HTTP server.
	// +optional
	BindAddress string `json:"bindAddress,omitempty"`

	// TriggerSecret, when set, is the HMAC-SHA256 key POST /sweep requests
	// must be signed with. Without it unsigned triggers are accepted.
	// +optional
	TriggerSecret string `json:"triggerSecret,omitempty"`

	// Events configures Kubernetes event recording.
	// +optional
	Events EventsConfiguration `json:"events,omitempty"`
}

// EventsConfiguration controls recording outcomes as Kubernetes Events.
type EventsConfiguration struct {
	// NodeName is the Node events are recorded against. Empty disables
	// event recording.
	// +optional
	NodeName string `json:"nodeName,omitempty"`

	// Namespace the events are created in.
	// +kubebuilder:default="default"
	// +optional
	Namespace string `json:"namespace,omitempty"`
}

// SetDefaults fills in unset fields.
func (c *SweeperConfiguration) SetDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = GroupVersion.String()
	}
	if c.Kind == "" {
		c.Kind = SweeperConfigurationKind.Kind
	}
	if len(c.LegacyPathsToWatch) > 0 {
		c.PathsToWatch = append(c.PathsToWatch, c.LegacyPathsToWatch...)
		c.LegacyPathsToWatch = nil
	}
	if c.Interval.Duration == 0 {
		c.Interval = metav1.Duration{Duration: DefaultInterval}
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Events.NodeName != "" && c.Events.Namespace == "" {
		c.Events.Namespace = metav1.NamespaceDefault
	}
}

// ServerEnabled reports whether the HTTP server should run.
func (c *SweeperConfiguration) ServerEnabled() bool {
	return c.BindAddress != ""
}

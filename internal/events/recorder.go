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

package events

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"unicode/utf8"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ttlsweeper/internal/cleanup"
)

const (
	// Component is the event source and reporting controller.
	Component = "ttlsweeper"

	managedByLabel = "ttlsweeper.io/managed-by"
	rootAnnotation = "ttlsweeper.io/root"

	// ReasonRemoved is the event reason for a removed directory.
	ReasonRemoved = "TTLExpired"

	maxMessageLength = 1024
)

// Recorder creates an Event against a Node for each removal and failure.
type Recorder struct {
	client    client.Client
	nodeName  string
	namespace string
	clock     clock.PassiveClock
	seq       atomic.Uint64
}

var _ cleanup.OutcomeReporter = (*Recorder)(nil)

// NewRecorder creates a recorder that writes events for nodeName into
// namespace.
func NewRecorder(c client.Client, nodeName, namespace string) *Recorder {
	return &Recorder{
		client:    c,
		nodeName:  nodeName,
		namespace: namespace,
		clock:     clock.RealClock{},
	}
}

// Report records o if it is a removal or a failure.
func (r *Recorder) Report(ctx context.Context, o cleanup.Outcome) {
	if o.Decision != cleanup.DecisionRemoved && o.Decision != cleanup.DecisionFailed {
		return
	}

	ev := r.event(o)
	if err := r.client.Create(ctx, ev); err != nil {
		log.FromContext(ctx).Error(err, "Failed to record event", "path", o.Path, "event", ev.Name)
	}
}

func (r *Recorder) event(o cleanup.Outcome) *corev1.Event {
	now := metav1.NewTime(r.clock.Now())

	eventType, reason, message := corev1.EventTypeNormal, ReasonRemoved, removedMessage(o)
	if o.Decision == cleanup.DecisionFailed {
		eventType, reason, message = corev1.EventTypeWarning, string(o.Reason), failedMessage(o)
	}
	message = truncate(message, maxMessageLength)

	return &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			// Same shape client-go's recorder uses, plus a sequence number so
			// events created within one clock tick stay unique.
			Name:      fmt.Sprintf("%s.%x-%d", r.nodeName, now.UnixNano(), r.seq.Add(1)),
			Namespace: r.namespace,
			Labels: map[string]string{
				managedByLabel: Component,
			},
			Annotations: map[string]string{
				rootAnnotation: o.Root,
			},
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion: "v1",
			Kind:       "Node",
			Name:       r.nodeName,
			// Node events are keyed by name, as the kubelet does.
			UID: types.UID(r.nodeName),
		},
		Reason:              reason,
		Message:             message,
		Type:                eventType,
		Source:              corev1.EventSource{Component: Component, Host: r.nodeName},
		FirstTimestamp:      now,
		LastTimestamp:       now,
		Count:               1,
		ReportingController: Component,
		ReportingInstance:   r.nodeName,
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func removedMessage(o cleanup.Outcome) string {
	msg := fmt.Sprintf("Removed %s (%s, created %s from %s)",
		o.Path, o.TTL.String(), o.CreatedAt.UTC().Format(metav1.RFC3339Micro), o.TimeSource)
	if o.Reclaimed != nil {
		msg += ", reclaimed " + o.Reclaimed.String()
	}
	return msg
}

func failedMessage(o cleanup.Outcome) string {
	errMsg := "unknown error"
	if o.Err != nil {
		errMsg = o.Err.Error()
	}
	return "Failed to clean up " + strconv.Quote(o.Path) + ": " + errMsg
}

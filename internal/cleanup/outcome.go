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

package cleanup

import (
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/mikelane/ttlsweeper/internal/ttl"
)

// Decision is what the cycle did with a TTL directory.
type Decision string

const (
	// DecisionRemoved means the directory had expired and was deleted.
	DecisionRemoved Decision = "Removed"
	// DecisionSkipped means the directory was left alone; Reason says why.
	DecisionSkipped Decision = "Skipped"
	// DecisionFailed means an error prevented a decision or a deletion.
	DecisionFailed Decision = "Failed"
)

// Reason qualifies a Decision.
type Reason string

const (
	ReasonExpired              Reason = "Expired"
	ReasonNotExpired           Reason = "NotExpired"
	ReasonAlreadyAbsent        Reason = "AlreadyAbsent"
	ReasonDryRun               Reason = "DryRun"
	ReasonBirthTimeUnavailable Reason = "BirthTimeUnavailable"
	ReasonMetadataUnavailable  Reason = "MetadataUnavailable"
	ReasonRemoveFailed         Reason = "RemoveFailed"
	ReasonRootUnavailable      Reason = "RootUnavailable"
)

// Outcome is the record emitted for one TTL directory, or for a watched root
// that could not be scanned (Path == Root, Reason == ReasonRootUnavailable).
type Outcome struct {
	Root     string
	Path     string
	Decision Decision
	Reason   Reason
	Err      error

	TTL        ttl.Value
	CreatedAt  time.Time
	TimeSource ttl.TimeSource
	// ExpiresAt is zero when the TTL is too large to represent.
	ExpiresAt time.Time

	// Reclaimed is set on removals when reclaimed space is measured.
	Reclaimed *resource.Quantity
}

// Summary is everything one cycle reported.
type Summary struct {
	Now      time.Time
	Outcomes []Outcome
}

// Count returns how many outcomes carry the given decision.
func (s Summary) Count(d Decision) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Decision == d {
			n++
		}
	}
	return n
}

// Reclaimed sums the measured size of every removed directory.
func (s Summary) Reclaimed() *resource.Quantity {
	total := resource.NewQuantity(0, resource.BinarySI)
	for _, o := range s.Outcomes {
		if o.Decision == DecisionRemoved && o.Reclaimed != nil {
			total.Add(*o.Reclaimed)
		}
	}
	return total
}

// Err aggregates the errors of all failed outcomes, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, o := range s.Outcomes {
		if o.Decision == DecisionFailed && o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

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

// Package cleanup removes expired TTL directories from watched roots.
//
// A Cycle is one pass: for each watched root it scans the immediate children
// (package scanner), evaluates each TTL directory against an injected "now"
// (package ttl), and deletes those that have expired. A Scheduler runs
// cycles periodically until its context is canceled.
//
// Safety:
//
// A directory is only ever deleted when both gates pass:
//
//	1. its name is exactly ttl=<n><unit>
//	2. now >= createdAt + ttl
//
// Outcomes:
//
// Every TTL directory looked at produces exactly one Outcome:
//
//	Removed  deleted; Reason Expired
//	Skipped  NotExpired, AlreadyAbsent, DryRun or BirthTimeUnavailable
//	Failed   MetadataUnavailable or RemoveFailed, with the cause in Err
//
// A root that cannot be listed produces a single Failed outcome with reason
// RootUnavailable. Directories whose names are not TTL names produce nothing.
// No failure aborts a cycle.
//
// Concurrency:
//
// Roots are swept in parallel (Options.Workers); entries within a root are
// handled in order. Reporters must therefore accept concurrent calls.
// Canceling the context stops new work but lets an in-flight removal finish.
//
// Example usage:
//
//	cycle := cleanup.NewCycle(scanner.New(scanner.Options{}), cleanup.LogReporter{}, cleanup.Options{})
//	scheduler := cleanup.NewScheduler(cycle, []string{"/var/tmp/builds"}, 5*time.Minute)
//	if err := scheduler.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package cleanup

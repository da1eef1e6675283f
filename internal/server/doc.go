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

// Package server provides the HTTP endpoints of ttlsweeper.
//
//   - /healthz answers 200 while the process is up.
//   - /readyz answers 200 once the first cleanup cycle has run.
//   - /metrics serves the Prometheus metrics registered with
//     controller-runtime's registry.
//   - POST /sweep asks the scheduler for an immediate cycle.
//
// Trigger Security:
//
// When a trigger secret is configured, POST /sweep requests must carry an
// X-Sweeper-Signature-256 header of the form "sha256=<hex>" holding the
// HMAC-SHA256 of the request body keyed with the secret. Requests with an
// invalid or missing signature are rejected with HTTP 401.
//
// Rate Limiting:
//
// Accepted triggers are rate limited with a token bucket. Requests over the
// limit receive HTTP 429 Too Many Requests. Triggers that arrive while a
// cycle is already pending are coalesced by the scheduler.
//
// Example usage:
//
//	srv := server.NewServer(":8080", scheduler, secret)
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
package server

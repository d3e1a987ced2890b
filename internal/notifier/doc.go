// Package notifier delivers outgoing chat messages asynchronously.
//
// A notification carries a target chat, a priority and an ordered list of
// messages (text or structured summary). One worker sends all messages of a
// notification in sequence, so a digest queued together with its summary
// always arrives first.
//
// # Delivery
//
// Sends are throttled by a token bucket, retried with jittered exponential
// backoff, and optionally suppressed by an in-memory dedup window. Nothing is
// persisted: suppression state is lost on restart.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// delivered notifications; the newest failure is reported by /status.
package notifier

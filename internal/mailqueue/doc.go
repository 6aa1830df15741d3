// Package mailqueue implements the durable outbound email queue.
//
// Jobs are enqueued as pending rows and delivered by Drain, which claims
// each job (pending -> sending under a fresh token) before handing it to
// the mail transport. A job is retried on later drains until it has failed
// domain.MaxEmailAttempts times, after which it stays failed. Every attempt
// is recorded in the append-only email log.
//
// When email is disabled or no transport is configured, Drain is a no-op
// that reports zero counts. Jobs keep accumulating and are delivered once
// delivery is configured.
package mailqueue

// Package smtp delivers outbound email over SMTP.
//
// A Mailer owns at most one SMTP session. The session is opened lazily on
// the first send, reused while it stays healthy, and dropped after a
// transport error or when the configuration changes, so the next send
// reconnects. Every send is bounded by a timeout; a hung server cannot
// stall the caller.
package smtp

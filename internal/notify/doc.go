// Package notify turns task events into per-user notifications.
//
// The Dispatcher applies the delivery rules for a single event: a user is
// never notified of their own action, the user's preferences decide the
// in-app and email channels (forceEmail overrides the email flag), the
// in-app record and the email job are written in one transaction, and the
// live push is fire-and-forget. Higher-level helpers build events for task
// assignment, status and priority changes, comments, due dates and
// @mentions in free text.
package notify

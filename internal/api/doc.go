// Package api exposes the notification engine over HTTP: the caller's
// inbox and live stream, notification preferences, workflow definitions and
// transition checks, activity intake, and admin triggers for the email
// queue and reminder scan. Handlers translate HTTP concerns to calls on the
// engine's services and map their errors to status codes in one place.
package api

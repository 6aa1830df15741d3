// Package logger provides structured logging for the notification engine.
//
// It builds on log/slog. Production runs emit JSON; interactive terminals get
// the text handler unless a format is forced by configuration. A request- or
// job-scoped logger travels through context.Context so that downstream code
// can log with the same correlation attributes.
package logger

// Package config handles configuration loading, parsing, and validation
// from a YAML file and TASKNOTIFY_-prefixed environment variables. It provides
// type-safe access to the settings needed by the store, mail queue, scheduler
// and HTTP server while keeping configuration details out of business logic.
package config

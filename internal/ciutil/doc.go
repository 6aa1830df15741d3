// Package ciutil detects CI environments and resolves the database used by
// integration tests, so test helpers behave the same on developer machines
// and CI runners.
package ciutil

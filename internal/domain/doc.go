// Package domain contains the core business entities, value objects, and
// domain logic of the notification engine: workflow definitions and the pure
// transition validator, notification preferences, in-app notifications,
// queued email jobs and their audit log, and due-date reminder markers.
// It is independent of any specific infrastructure or delivery mechanism.
package domain

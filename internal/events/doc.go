// Package events carries task activity from the task-mutation path to the
// notification engine.
//
// Task mutations happen outside this service. Whatever performs them
// reports the change as an ActivityEvent; the in-memory emitter fans the
// event out to registered handlers, such as the notification activity
// handler, without the producer knowing who listens.
//
// The primary components are:
// - ActivityEvent: one task change (status, assignment, priority, comment)
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events

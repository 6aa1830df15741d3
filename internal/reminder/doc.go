// Package reminder scans assigned tasks for due-soon and overdue
// conditions and notifies each user at most once per task, reminder type
// and reminder date.
package reminder

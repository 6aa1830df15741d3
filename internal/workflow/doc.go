// Package workflow manages workflow definitions: the named, data-driven
// state machines that govern which status changes a task may make and
// which roles may make them.
//
// The Service enforces the single-default rule (setting a new default
// clears the old one in the same transaction) and refuses to delete the
// default definition. Pure transition checks live in the domain package;
// Service.ValidateTransition only resolves which definition applies.
package workflow

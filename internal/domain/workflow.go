package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reasons reported by ValidateTransition for rejected transitions.
const (
	ReasonStatusUnchanged   = "transition not allowed: status unchanged"
	ReasonNoRule            = "no rule for current status"
	ReasonNotAllowed        = "transition not allowed"
	ReasonRoleNotAuthorized = "role not authorized"
)

// restrictionSeparator joins the two halves of a role restriction key.
const restrictionSeparator = "->"

// Validation errors for WorkflowDefinition
var (
	ErrEmptyWorkflowName     = errors.New("workflow name cannot be empty")
	ErrEmptyWorkflowStatuses = errors.New("workflow must define at least one status")
)

// WorkflowStatus is a single state a task can be in under a workflow.
type WorkflowStatus struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Order       int    `json:"order"`
}

// WorkflowTransition lists the statuses reachable from one status.
type WorkflowTransition struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

// WorkflowDefinition is a named, data-driven state machine governing task
// status changes. Role restrictions are keyed by "from->to"; an empty or
// missing entry means any role may perform the transition.
type WorkflowDefinition struct {
	ID               uuid.UUID            `json:"id"`
	Name             string               `json:"name"`
	Statuses         []WorkflowStatus     `json:"statuses"`
	Transitions      []WorkflowTransition `json:"transitions"`
	RoleRestrictions map[string][]string  `json:"roleRestrictions"`
	IsDefault        bool                 `json:"isDefault"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// TransitionResult is the outcome of ValidateTransition. A rejected
// transition is an expected outcome, so it is reported as a value rather
// than an error.
type TransitionResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// RestrictionKey builds the role restriction key for a transition.
func RestrictionKey(from, to string) string {
	return from + restrictionSeparator + to
}

// ValidateTransition checks a proposed status change against a workflow
// definition for the given acting role. It has no side effects.
func ValidateTransition(def *WorkflowDefinition, from, to, role string) TransitionResult {
	if from == to {
		return TransitionResult{Valid: false, Reason: ReasonStatusUnchanged}
	}
	if def == nil {
		return TransitionResult{Valid: false, Reason: ReasonNoRule}
	}

	allowed, ok := def.AllowedTargets(from)
	if !ok {
		return TransitionResult{Valid: false, Reason: ReasonNoRule}
	}
	if !contains(allowed, to) {
		return TransitionResult{Valid: false, Reason: ReasonNotAllowed}
	}

	roles := def.RoleRestrictions[RestrictionKey(from, to)]
	if len(roles) > 0 && !contains(roles, role) {
		return TransitionResult{Valid: false, Reason: ReasonRoleNotAuthorized}
	}

	return TransitionResult{Valid: true}
}

// AllowedTargets returns the allowed target statuses for from, and whether
// the definition has a transition entry for it at all.
func (w *WorkflowDefinition) AllowedTargets(from string) ([]string, bool) {
	for _, t := range w.Transitions {
		if t.From == from {
			return t.To, true
		}
	}
	return nil, false
}

// Status looks up a status by id.
func (w *WorkflowDefinition) Status(id string) (WorkflowStatus, bool) {
	for _, s := range w.Statuses {
		if s.ID == id {
			return s, true
		}
	}
	return WorkflowStatus{}, false
}

// OrderedStatuses returns the statuses sorted by their Order field.
func (w *WorkflowDefinition) OrderedStatuses() []WorkflowStatus {
	out := make([]WorkflowStatus, len(w.Statuses))
	copy(out, w.Statuses)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Validate checks that the definition is internally consistent: it has a
// name and statuses, status ids are unique, and every transition and role
// restriction refers to known statuses.
func (w *WorkflowDefinition) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyWorkflowName)
	}
	if len(w.Statuses) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyWorkflowStatuses)
	}

	known := make(map[string]struct{}, len(w.Statuses))
	for i, s := range w.Statuses {
		if strings.TrimSpace(s.ID) == "" {
			return NewValidationError(fmt.Sprintf("statuses[%d].id", i), "must not be empty")
		}
		if _, dup := known[s.ID]; dup {
			return NewValidationError(fmt.Sprintf("statuses[%d].id", i),
				fmt.Sprintf("duplicate status id %q", s.ID))
		}
		known[s.ID] = struct{}{}
	}

	seenFrom := make(map[string]struct{}, len(w.Transitions))
	for i, t := range w.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)
		if _, ok := known[t.From]; !ok {
			return NewValidationError(field+".from", fmt.Sprintf("unknown status %q", t.From))
		}
		if _, dup := seenFrom[t.From]; dup {
			return NewValidationError(field+".from",
				fmt.Sprintf("duplicate transition entry for %q", t.From))
		}
		seenFrom[t.From] = struct{}{}
		for _, to := range t.To {
			if _, ok := known[to]; !ok {
				return NewValidationError(field+".to", fmt.Sprintf("unknown status %q", to))
			}
		}
	}

	for key := range w.RoleRestrictions {
		from, to, ok := strings.Cut(key, restrictionSeparator)
		if !ok {
			return NewValidationError("roleRestrictions",
				fmt.Sprintf("key %q must have the form from->to", key))
		}
		allowed, found := w.AllowedTargets(from)
		if !found || !contains(allowed, to) {
			return NewValidationError("roleRestrictions",
				fmt.Sprintf("key %q does not name an allowed transition", key))
		}
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

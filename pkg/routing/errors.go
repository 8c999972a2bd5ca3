package routing

import (
	"errors"
	"fmt"
)

// DuplicateTargetError is returned by Register when the target id already
// exists. Registration is never an overwrite.
type DuplicateTargetError struct {
	ID string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("target %q already registered", e.ID)
}

// NewDuplicateTargetError creates a DuplicateTargetError for the given id.
func NewDuplicateTargetError(id string) *DuplicateTargetError {
	return &DuplicateTargetError{ID: id}
}

// TargetNotFoundError is returned when an operation names an id that is
// not in the registry.
type TargetNotFoundError struct {
	ID string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target %q not found", e.ID)
}

// NewTargetNotFoundError creates a TargetNotFoundError for the given id.
func NewTargetNotFoundError(id string) *TargetNotFoundError {
	return &TargetNotFoundError{ID: id}
}

// TargetDisabledError is returned for explicit routes to a disabled
// target. Explicit requests never substitute another target.
type TargetDisabledError struct {
	ID string
}

func (e *TargetDisabledError) Error() string {
	return fmt.Sprintf("target %q is disabled", e.ID)
}

// NewTargetDisabledError creates a TargetDisabledError for the given id.
func NewTargetDisabledError(id string) *TargetDisabledError {
	return &TargetDisabledError{ID: id}
}

// InvalidTargetError is returned by Register when required fields are
// missing or malformed.
type InvalidTargetError struct {
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return "invalid target: " + e.Reason
}

// NewInvalidTargetError creates an InvalidTargetError with the reason.
func NewInvalidTargetError(reason string) *InvalidTargetError {
	return &InvalidTargetError{Reason: reason}
}

// InvalidRuleError rejects a whole UpdateRoutingRules call; no partial
// rule application ever happens.
type InvalidRuleError struct {
	RuleID string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	if e.RuleID == "" {
		return "invalid routing rule: " + e.Reason
	}
	return fmt.Sprintf("invalid routing rule %q: %s", e.RuleID, e.Reason)
}

// NewInvalidRuleError creates an InvalidRuleError for the given rule.
func NewInvalidRuleError(ruleID, reason string) *InvalidRuleError {
	return &InvalidRuleError{RuleID: ruleID, Reason: reason}
}

// ErrNoEnabledTargets is returned when the registry is empty or every
// target is disabled.
var ErrNoEnabledTargets = errors.New("no enabled targets registered")

// ErrNoSuitableTarget is returned when scoring produced no candidates and
// no fallback target existed.
var ErrNoSuitableTarget = errors.New("no suitable target for request")

// IsNotFound reports whether err is a TargetNotFoundError.
func IsNotFound(err error) bool {
	var nf *TargetNotFoundError
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err is a DuplicateTargetError.
func IsDuplicate(err error) bool {
	var dup *DuplicateTargetError
	return errors.As(err, &dup)
}

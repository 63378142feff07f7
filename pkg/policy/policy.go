// Package policy evaluates merge eligibility rules against pull request state.
package policy

import (
	"fmt"
	"strings"

	"mergegate/pkg/forge"
)

// Policy is the merge gate configuration for one run. It is supplied by
// the caller and constant for the run.
type Policy struct {
	// MinApprovals is the minimum count of distinct approving reviewers.
	// Non-negative; zero disables the approval rule.
	MinApprovals int

	// RequiredLabels are status-check labels that must all pass on the
	// PR's head commit. Empty disables the label rule.
	RequiredLabels []string
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MinApprovals < 0 {
		return fmt.Errorf("min approvals must be non-negative, got %d", p.MinApprovals)
	}
	return nil
}

// ParseRequiredLabels splits a comma-separated label list, trimming
// whitespace and dropping empty entries.
func ParseRequiredLabels(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var labels []string
	for _, l := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	return labels
}

// Reason identifies which rule an ineligible PR failed.
type Reason string

// Rule failure reasons.
const (
	ReasonInsufficientApprovals Reason = "INSUFFICIENT_APPROVALS"
	ReasonMissingStatusChecks   Reason = "MISSING_STATUS_CHECKS"
)

// Ineligibility describes the first rule the PR failed.
//
//nolint:govet // Logical field grouping preferred over memory optimization
type Ineligibility struct {
	// Reason identifies the failed rule.
	Reason Reason

	// Have and Need carry the approval counts for INSUFFICIENT_APPROVALS.
	Have int
	Need int

	// Missing lists the required labels absent from the PR's passing
	// set for MISSING_STATUS_CHECKS, in required-list order.
	Missing []string
}

// String renders the unmet condition for error messages and logs.
func (i *Ineligibility) String() string {
	switch i.Reason {
	case ReasonInsufficientApprovals:
		return fmt.Sprintf("insufficient approvals: have %d, need %d", i.Have, i.Need)
	case ReasonMissingStatusChecks:
		return fmt.Sprintf("missing status checks: %s", strings.Join(i.Missing, ", "))
	default:
		return string(i.Reason)
	}
}

// IneligibleError is returned when a PR fails the merge gate. It is
// fatal for the run; nothing about it is retryable until the PR changes.
type IneligibleError struct {
	Reason Ineligibility
}

// NewIneligibleError wraps an ineligibility as a fatal error.
func NewIneligibleError(reason *Ineligibility) *IneligibleError {
	return &IneligibleError{Reason: *reason}
}

// Error implements the error interface.
func (e *IneligibleError) Error() string {
	return "PR ineligible for merge: " + e.Reason.String()
}

// Evaluate applies the policy rules to fetched PR state. Rules run in
// order and the first failure wins. A nil return means the PR is
// eligible. Evaluate is never called for an already-merged PR; the
// workflow short-circuits on the merged flag before policy runs.
//
// The label rule is a pass-through when RequiredLabels is empty, which
// keeps the contract stable for callers that only gate on approvals.
func Evaluate(state *forge.PullRequestState, pol Policy) *Ineligibility {
	if state.Approvals < pol.MinApprovals {
		return &Ineligibility{
			Reason: ReasonInsufficientApprovals,
			Have:   state.Approvals,
			Need:   pol.MinApprovals,
		}
	}

	if missing := state.StatusLabels.Missing(pol.RequiredLabels); len(missing) > 0 {
		return &Ineligibility{
			Reason:  ReasonMissingStatusChecks,
			Missing: missing,
		}
	}

	return nil
}

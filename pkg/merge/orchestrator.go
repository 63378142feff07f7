// Package merge drives the fetch -> evaluate -> merge workflow for one
// pull request and assembles the outcome record for the pipeline.
package merge

import (
	"context"
	"fmt"

	"mergegate/pkg/forge"
	"mergegate/pkg/logx"
	"mergegate/pkg/policy"
)

// State identifies a step of the merge workflow.
type State string

// Workflow states.
const (
	StateStart         State = "START"
	StateFetched       State = "FETCHED"
	StateAlreadyMerged State = "ALREADY_MERGED"
	StateEvaluated     State = "EVALUATED"
	StateMerged        State = "MERGED"
	StateRejected      State = "REJECTED"
	StateDone          State = "DONE"
)

// transitionTable lists the legal transitions of the merge workflow.
// REJECTED and DONE are terminal.
//
//nolint:gochecknoglobals // Static transition table
var transitionTable = map[State][]State{
	StateStart:         {StateFetched},
	StateFetched:       {StateAlreadyMerged, StateEvaluated},
	StateAlreadyMerged: {StateDone},
	StateEvaluated:     {StateMerged, StateRejected},
	StateMerged:        {StateDone},
	StateRejected:      {},
	StateDone:          {},
}

// ValidTransition reports whether from -> to is a legal workflow transition.
func ValidTransition(from, to State) bool {
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Default merge commit strings, overridable via Options.
const (
	DefaultCommitTitle   = "PR merged by mergegate (CI)"
	DefaultCommitMessage = "PR merged by mergegate (CI) with required checks passed"
)

// Options configures one orchestrator run.
type Options struct {
	// Method is the merge method passed to the forge; the client
	// defaults to "merge" when empty.
	Method string

	// CommitTitle overrides the merge commit title.
	CommitTitle string

	// CommitMessage overrides the merge commit message.
	CommitMessage string
}

// Orchestrator coordinates one merge-gate run against a single PR. It
// owns the fetched state and the policy for the duration of the run and
// produces exactly one terminal outcome.
type Orchestrator struct {
	client  forge.Client
	pol     policy.Policy
	opts    Options
	logger  *logx.Logger
	state   State
	pr      *forge.PullRequestState
	outcome *Outcome
}

// NewOrchestrator creates an orchestrator for one run.
func NewOrchestrator(client forge.Client, pol policy.Policy, opts Options) *Orchestrator {
	return &Orchestrator{
		client: client,
		pol:    pol,
		opts:   opts,
		logger: logx.NewLogger("merge"),
		state:  StateStart,
	}
}

// State returns the workflow state reached so far.
func (o *Orchestrator) State() State {
	return o.state
}

// PR returns the fetched pull request state, nil before START completes.
func (o *Orchestrator) PR() *forge.PullRequestState {
	return o.pr
}

// Run executes the workflow to completion and returns the outcome.
// Errors propagate unchanged: client errors keep their classification
// and an ineligible PR surfaces as *policy.IneligibleError. No retries
// happen here; resilience belongs to the caller.
func (o *Orchestrator) Run(ctx context.Context, ref forge.PullRequestRef) (*Outcome, error) {
	o.logger.Info("🔀 Evaluating %s for merge", ref.String())

	for {
		next, done, err := o.processState(ctx, ref)
		if next != o.state {
			if terr := o.transitionTo(next); terr != nil {
				return nil, terr
			}
		}
		if err != nil {
			return nil, err
		}
		if done {
			return o.outcome, nil
		}
	}
}

// processState handles the logic for the current state. It returns the
// next state, whether the workflow is complete, and any fatal error.
func (o *Orchestrator) processState(ctx context.Context, ref forge.PullRequestRef) (State, bool, error) {
	switch o.state {
	case StateStart:
		pr, err := o.client.FetchPR(ctx, ref.Number)
		if err != nil {
			return o.state, false, err
		}
		o.pr = pr
		return StateFetched, false, nil

	case StateFetched:
		if o.pr.IsMerged() {
			o.logger.Info("🔀 PR #%d already merged into %s, nothing to do", ref.Number, o.pr.TargetBranch)
			return StateAlreadyMerged, false, nil
		}
		return StateEvaluated, false, nil

	case StateAlreadyMerged:
		// Idempotent re-run guard: same outcome shape every time, no
		// write calls against the host.
		o.outcome = &Outcome{
			AlreadyMerged: true,
			Merged:        false,
			TargetBranch:  o.pr.TargetBranch,
			PRRepoURL:     o.pr.RepoURL,
			PRNumber:      ref.Number,
		}
		return StateDone, true, nil

	case StateEvaluated:
		if reason := policy.Evaluate(o.pr, o.pol); reason != nil {
			o.logger.Warn("🔀 PR #%d rejected: %s", ref.Number, reason)
			return StateRejected, false, policy.NewIneligibleError(reason)
		}

		o.logger.Info("🔀 PR #%d eligible (approvals: %d, passing checks: %d), merging",
			ref.Number, o.pr.Approvals, len(o.pr.StatusLabels))

		if err := o.client.MergePR(ctx, ref.Number, o.mergeOptions()); err != nil {
			return o.state, false, err
		}
		return StateMerged, false, nil

	case StateMerged:
		o.logger.Info("🔀 Merged PR #%d into %s", ref.Number, o.pr.TargetBranch)
		o.outcome = &Outcome{
			AlreadyMerged: false,
			Merged:        true,
			TargetBranch:  o.pr.TargetBranch,
			PRRepoURL:     o.pr.RepoURL,
			PRNumber:      ref.Number,
		}
		return StateDone, true, nil

	case StateDone:
		return o.state, true, nil

	case StateRejected:
		// Terminal failure; a finished orchestrator is not reusable.
		return o.state, false, fmt.Errorf("merge workflow already terminated in %s", o.state)

	default:
		return o.state, false, fmt.Errorf("merge workflow in unknown state %q", o.state)
	}
}

// transitionTo moves the workflow to a new state, enforcing the table.
func (o *Orchestrator) transitionTo(next State) error {
	if !ValidTransition(o.state, next) {
		return fmt.Errorf("illegal merge workflow transition: %s -> %s", o.state, next)
	}
	o.logger.Debug("State transition: %s -> %s", o.state, next)
	o.state = next
	return nil
}

// mergeOptions builds the forge merge options, applying commit string
// defaults.
func (o *Orchestrator) mergeOptions() forge.MergeOptions {
	opts := forge.MergeOptions{
		Method:        o.opts.Method,
		CommitTitle:   o.opts.CommitTitle,
		CommitMessage: o.opts.CommitMessage,
	}
	if opts.CommitTitle == "" {
		opts.CommitTitle = DefaultCommitTitle
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = DefaultCommitMessage
	}
	return opts
}

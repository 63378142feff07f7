// Package forge provides abstractions for git hosting providers.
// This package defines the normalized pull request types and the client
// interface the merge workflow operates against.
package forge

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PullRequestRef identifies a pull request on a specific host.
// It is derived once from the input URL and never mutated.
type PullRequestRef struct {
	// Host is the code-host domain (e.g., "github.com").
	Host string

	// Owner is the repository owner or organization.
	Owner string

	// Repo is the repository name.
	Repo string

	// Number is the pull request number. Always > 0 for a valid ref.
	Number int
}

// RepoPath returns the owner/repo path.
func (r PullRequestRef) RepoPath() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
}

// RepoURL returns the canonical web URL of the repository.
func (r PullRequestRef) RepoURL() string {
	return fmt.Sprintf("https://%s/%s/%s", r.Host, r.Owner, r.Repo)
}

// String returns the canonical pull request web URL.
func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s/pull/%d", r.RepoURL(), r.Number)
}

// LabelSet is a set of status-check labels that currently pass on a commit.
type LabelSet map[string]struct{}

// NewLabelSet builds a LabelSet from label names.
func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s.Add(l)
	}
	return s
}

// Add inserts a label into the set.
func (s LabelSet) Add(label string) {
	s[label] = struct{}{}
}

// Contains reports whether the label is in the set.
func (s LabelSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// Missing returns the required labels not present in the set,
// preserving the order of the required slice.
func (s LabelSet) Missing(required []string) []string {
	var missing []string
	for _, l := range required {
		if !s.Contains(l) {
			missing = append(missing, l)
		}
	}
	return missing
}

// Sorted returns the labels in lexical order, for stable logging.
func (s LabelSet) Sorted() []string {
	labels := make([]string, 0, len(s))
	for l := range s {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// PullRequestState is a merge-relevant snapshot of a pull request.
// Field names are normalized across providers. Fetched fresh per run
// and read-only afterwards.
//
//nolint:govet // Logical field grouping preferred over memory optimization
type PullRequestState struct {
	// Number is the PR number/index.
	Number int `json:"number"`

	// Title is the PR title.
	Title string `json:"title"`

	// RepoURL is the web URL of the repository the PR belongs to.
	RepoURL string `json:"repo_url"`

	// SourceBranch is the head branch name.
	SourceBranch string `json:"source_branch"`

	// TargetBranch is the base branch name.
	TargetBranch string `json:"target_branch"`

	// HeadSHA is the head commit SHA status checks are reported against.
	HeadSHA string `json:"head_sha"`

	// Merged indicates if the PR has already been merged.
	Merged bool `json:"merged"`

	// MergedAt is when the PR was merged (if merged).
	MergedAt *time.Time `json:"merged_at,omitempty"`

	// Approvals is the count of distinct users whose latest submitted
	// review is an approval. A later non-approving review from the same
	// user revokes their approval.
	Approvals int `json:"approvals"`

	// StatusLabels is the set of status-check labels that pass on HeadSHA.
	StatusLabels LabelSet `json:"status_labels"`
}

// IsMerged returns true if the PR has been merged.
func (pr *PullRequestState) IsMerged() bool {
	return pr.Merged || pr.MergedAt != nil
}

// MergeOptions contains options for merging a pull request.
//
//nolint:govet // Logical field grouping preferred over memory optimization
type MergeOptions struct {
	// Method is the merge method: "merge", "squash", or "rebase".
	// Default is "merge".
	Method string

	// CommitTitle is the merge commit title (optional).
	CommitTitle string

	// CommitMessage is the merge commit message (optional).
	CommitMessage string
}

// Client defines the interface for forge operations used by the merge
// workflow. A client is bound to one repository on one host.
type Client interface {
	// RepoPath returns the owner/repo path the client is bound to.
	RepoPath() string

	// FetchPR retrieves the merge-relevant state of a pull request:
	// merged flag, branch names, approving-review count, and the set of
	// passing status-check labels.
	FetchPR(ctx context.Context, number int) (*PullRequestState, error)

	// MergePR merges a pull request. The merge commit is irreversible;
	// callers must gate it on policy first.
	MergePR(ctx context.Context, number int, opts MergeOptions) error
}

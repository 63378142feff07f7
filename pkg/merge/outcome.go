package merge

import "fmt"

// Outcome is the fixed-schema result record handed to the downstream
// pipeline. The field set and names are a stable contract; do not
// extend without versioning the consumers.
type Outcome struct {
	// AlreadyMerged is true when the PR was merged before this run.
	AlreadyMerged bool `json:"already_merged"`

	// Merged is true when this run performed the merge.
	Merged bool `json:"merged"`

	// TargetBranch is the branch the PR merges into.
	TargetBranch string `json:"target_branch"`

	// PRRepoURL is the web URL of the PR's repository.
	PRRepoURL string `json:"pr_repo_url"`

	// PRNumber is the pull request number.
	PRNumber int `json:"pr_number"`
}

// Validate checks the outcome invariant: exactly one of AlreadyMerged
// and Merged is true.
func (o *Outcome) Validate() error {
	if o.AlreadyMerged == o.Merged {
		return fmt.Errorf("invalid outcome: already_merged=%t merged=%t, exactly one must be true",
			o.AlreadyMerged, o.Merged)
	}
	if o.PRNumber <= 0 {
		return fmt.Errorf("invalid outcome: pr_number must be positive, got %d", o.PRNumber)
	}
	return nil
}

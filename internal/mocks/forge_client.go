package mocks

import (
	"context"

	"mergegate/pkg/forge"
)

// MockForgeClient implements forge.Client for testing.
// It provides configurable behavior for fetch and merge operations.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockForgeClient struct {
	// Function handlers for each method
	FetchPRFunc func(ctx context.Context, number int) (*forge.PullRequestState, error)
	MergePRFunc func(ctx context.Context, number int, opts forge.MergeOptions) error

	// Call tracking
	FetchPRCalls []int
	MergePRCalls []MergePRCall

	// Configuration
	repoPath string
}

// MergePRCall records the parameters of a MergePR call.
type MergePRCall struct {
	Number int
	Opts   forge.MergeOptions
}

// NewMockForgeClient creates a new mock forge client with default behavior:
// an open, unmerged PR with no approvals and no passing checks, and merge
// calls that succeed.
func NewMockForgeClient() *MockForgeClient {
	m := &MockForgeClient{
		repoPath: "mock-owner/mock-repo",
	}

	// Default FetchPR: open PR, nothing approved, nothing passing.
	m.FetchPRFunc = func(_ context.Context, number int) (*forge.PullRequestState, error) {
		return &forge.PullRequestState{
			Number:       number,
			Title:        "Mock PR",
			RepoURL:      "https://github.com/mock-owner/mock-repo",
			SourceBranch: "feature/mock",
			TargetBranch: "main",
			HeadSHA:      "abc123def456",
			StatusLabels: forge.NewLabelSet(),
		}, nil
	}

	// Default MergePR: success.
	m.MergePRFunc = func(_ context.Context, _ int, _ forge.MergeOptions) error {
		return nil
	}

	return m
}

// RepoPath implements forge.Client.
func (m *MockForgeClient) RepoPath() string {
	return m.repoPath
}

// FetchPR implements forge.Client.
func (m *MockForgeClient) FetchPR(ctx context.Context, number int) (*forge.PullRequestState, error) {
	m.FetchPRCalls = append(m.FetchPRCalls, number)
	return m.FetchPRFunc(ctx, number)
}

// MergePR implements forge.Client.
func (m *MockForgeClient) MergePR(ctx context.Context, number int, opts forge.MergeOptions) error {
	m.MergePRCalls = append(m.MergePRCalls, MergePRCall{Number: number, Opts: opts})
	return m.MergePRFunc(ctx, number, opts)
}

// --- Helper methods for test configuration ---

// OnFetchPR sets a custom handler for FetchPR calls.
func (m *MockForgeClient) OnFetchPR(fn func(ctx context.Context, number int) (*forge.PullRequestState, error)) {
	m.FetchPRFunc = fn
}

// OnMergePR sets a custom handler for MergePR calls.
func (m *MockForgeClient) OnMergePR(fn func(ctx context.Context, number int, opts forge.MergeOptions) error) {
	m.MergePRFunc = fn
}

// ReturnState configures FetchPR to return a fixed state.
func (m *MockForgeClient) ReturnState(state *forge.PullRequestState) {
	m.FetchPRFunc = func(_ context.Context, _ int) (*forge.PullRequestState, error) {
		return state, nil
	}
}

// --- Error simulation helpers ---

// FailFetchPRWith configures FetchPR to return the specified error.
func (m *MockForgeClient) FailFetchPRWith(err error) {
	m.FetchPRFunc = func(_ context.Context, _ int) (*forge.PullRequestState, error) {
		return nil, err
	}
}

// FailMergePRWith configures MergePR to return the specified error.
func (m *MockForgeClient) FailMergePRWith(err error) {
	m.MergePRFunc = func(_ context.Context, _ int, _ forge.MergeOptions) error {
		return err
	}
}

// --- Verification helpers ---

// Reset clears all recorded calls.
func (m *MockForgeClient) Reset() {
	m.FetchPRCalls = nil
	m.MergePRCalls = nil
}

// GetFetchCallCount returns the number of times FetchPR was called.
func (m *MockForgeClient) GetFetchCallCount() int {
	return len(m.FetchPRCalls)
}

// GetMergeCallCount returns the number of times MergePR was called.
func (m *MockForgeClient) GetMergeCallCount() int {
	return len(m.MergePRCalls)
}

// WasMergeCalled returns true if MergePR was called at least once.
func (m *MockForgeClient) WasMergeCalled() bool {
	return len(m.MergePRCalls) > 0
}

// LastMergeCall returns the most recent MergePR call, or nil if none.
func (m *MockForgeClient) LastMergeCall() *MergePRCall {
	if len(m.MergePRCalls) == 0 {
		return nil
	}
	return &m.MergePRCalls[len(m.MergePRCalls)-1]
}

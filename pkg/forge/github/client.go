// Package github implements forge.Client against the GitHub REST v3 API.
// It works for github.com and GitHub Enterprise hosts, which serve the
// same API under a different base URL.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mergegate/pkg/forge"
	"mergegate/pkg/logx"
)

const (
	defaultTimeout = 30 * time.Second

	// perPage is the page size for list endpoints. 100 is the API maximum.
	perPage = 100

	// maxBodyStub bounds how much of an error response body is kept.
	maxBodyStub = 512
)

// Review and status states as reported by the API.
const (
	reviewStateApproved = "APPROVED"
	reviewStatePending  = "PENDING"
	statusStateSuccess  = "success"
)

// Credentials is the username/token pair used for API authentication.
// The pair is passed in explicitly so the client stays testable with
// fakes; nothing here reads the environment.
type Credentials struct {
	Username string
	Token    string
}

// Client implements forge.Client for GitHub API operations.
type Client struct {
	apiBase string
	host    string
	owner   string
	repo    string
	creds   Credentials
	logger  *logx.Logger
	client  *http.Client
}

// NewClient creates a GitHub API client bound to the repository in ref.
// The API base URL is derived from the host; use WithAPIBase to override
// it for nonstandard installs or tests.
func NewClient(ref forge.PullRequestRef, creds Credentials) *Client {
	return &Client{
		apiBase: APIBaseForHost(ref.Host),
		host:    ref.Host,
		owner:   ref.Owner,
		repo:    ref.Repo,
		creds:   creds,
		logger:  logx.NewLogger("github-client"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// APIBaseForHost derives the REST API base URL for a host. github.com
// serves the API on a dedicated subdomain; GitHub Enterprise serves the
// same API under /api/v3 on the instance host.
func APIBaseForHost(host string) string {
	if host == "github.com" || host == "www.github.com" {
		return "https://api.github.com"
	}
	return fmt.Sprintf("https://%s/api/v3", host)
}

// WithAPIBase returns a copy of the client using the given API base URL.
func (c *Client) WithAPIBase(base string) *Client {
	clone := *c
	clone.apiBase = strings.TrimSuffix(base, "/")
	return &clone
}

// WithTimeout returns a copy of the client with the specified request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := *c
	clone.client = &http.Client{Timeout: timeout}
	return &clone
}

// RepoPath returns the owner/repo path.
func (c *Client) RepoPath() string {
	return fmt.Sprintf("%s/%s", c.owner, c.repo)
}

// Host returns the code-host domain the client is bound to.
func (c *Client) Host() string {
	return c.host
}

// Close releases the client's idle transport connections. Call it on
// every exit path once the run's API calls are done.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// apiURL constructs a full API URL.
func (c *Client) apiURL(path string) string {
	return c.apiBase + path
}

// doRequest performs an HTTP request with authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.apiURL(path)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, forge.NewErrorWithCause(forge.KindUnknown, err, "failed to marshal request body")
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, forge.NewErrorWithCause(forge.KindUnknown, err, "failed to create request")
	}

	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Token)
	} else {
		req.Header.Set("Authorization", "token "+c.creds.Token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")

	c.logger.Debug("%s %s", method, url)

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts, DNS failures, resets - all transport-level, all transient.
		return nil, forge.NewErrorWithCause(forge.KindTransient, err, fmt.Sprintf("%s %s failed", method, url))
	}

	return resp, nil
}

// classifyStatus maps an unexpected HTTP status to a classified error.
func classifyStatus(op string, statusCode int, body []byte) *forge.Error {
	var kind forge.ErrorKind
	switch {
	case statusCode == http.StatusNotFound:
		kind = forge.KindNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = forge.KindAuth
	case statusCode == http.StatusMethodNotAllowed || statusCode == http.StatusConflict:
		kind = forge.KindConflict
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		kind = forge.KindTransient
	default:
		kind = forge.KindUnknown
	}

	e := forge.NewErrorWithStatus(kind, statusCode, fmt.Sprintf("%s failed with status %d", op, statusCode))
	e.BodyStub = bodyStub(body)
	return e
}

// bodyStub returns a bounded snippet of a response body for error messages.
func bodyStub(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyStub {
		return s[:maxBodyStub] + "..."
	}
	return s
}

// GitHub API response structures.
type githubPR struct {
	Number   int       `json:"number"`
	HTMLURL  string    `json:"html_url"`
	Title    string    `json:"title"`
	State    string    `json:"state"` // open, closed
	Merged   bool      `json:"merged"`
	MergedAt *string   `json:"merged_at"`
	Head     githubRef `json:"head"`
	Base     githubRef `json:"base"`
}

type githubRef struct {
	Label string     `json:"label"`
	Ref   string     `json:"ref"`
	SHA   string     `json:"sha"`
	Repo  githubRepo `json:"repo"`
}

type githubRepo struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type githubReview struct {
	User        githubUser `json:"user"`
	State       string     `json:"state"`
	SubmittedAt *string    `json:"submitted_at"`
}

type githubUser struct {
	Login string `json:"login"`
}

type githubStatus struct {
	Context string `json:"context"`
	State   string `json:"state"`
}

// convertPR converts a GitHub PR to forge.PullRequestState.
func (c *Client) convertPR(gpr *githubPR) *forge.PullRequestState {
	state := &forge.PullRequestState{
		Number:       gpr.Number,
		Title:        gpr.Title,
		RepoURL:      gpr.Base.Repo.HTMLURL,
		SourceBranch: gpr.Head.Ref,
		TargetBranch: gpr.Base.Ref,
		HeadSHA:      gpr.Head.SHA,
		Merged:       gpr.Merged,
		StatusLabels: forge.NewLabelSet(),
	}

	if state.RepoURL == "" {
		state.RepoURL = fmt.Sprintf("https://%s/%s/%s", c.host, c.owner, c.repo)
	}

	if gpr.MergedAt != nil && *gpr.MergedAt != "" {
		if t, err := time.Parse(time.RFC3339, *gpr.MergedAt); err == nil {
			state.MergedAt = &t
		}
	}

	return state
}

// FetchPR retrieves the merge-relevant state of a pull request. For a PR
// that is already merged the review and status lookups are skipped: the
// caller short-circuits on the merged flag before any policy evaluation,
// matching the call order of the merge workflow.
func (c *Client) FetchPR(ctx context.Context, number int) (*forge.PullRequestState, error) {
	gpr, err := c.getPR(ctx, number)
	if err != nil {
		return nil, err
	}

	state := c.convertPR(gpr)
	if state.IsMerged() {
		return state, nil
	}

	approvals, err := c.countApprovals(ctx, number)
	if err != nil {
		return nil, err
	}
	state.Approvals = approvals

	labels, err := c.passingStatusLabels(ctx, gpr.Head.SHA)
	if err != nil {
		return nil, err
	}
	state.StatusLabels = labels

	return state, nil
}

// getPR retrieves the raw PR record.
func (c *Client) getPR(ctx context.Context, number int) (*githubPR, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", c.owner, c.repo, number)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, forge.NewErrorWithStatus(forge.KindNotFound, resp.StatusCode,
			fmt.Sprintf("PR #%d not found in %s", number, c.RepoPath()))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(fmt.Sprintf("get PR #%d", number), resp.StatusCode, body)
	}

	var gpr githubPR
	if err := json.NewDecoder(resp.Body).Decode(&gpr); err != nil {
		return nil, forge.NewErrorWithCause(forge.KindUnknown, err, "failed to decode pull request response")
	}

	return &gpr, nil
}

// countApprovals returns the number of distinct users whose latest
// submitted review approves the PR. The reviews endpoint lists reviews
// in submission order, so a later entry for the same user supersedes an
// earlier one; a later non-approving review revokes the approval.
// PENDING reviews are drafts, not submissions, and are ignored.
func (c *Client) countApprovals(ctx context.Context, number int) (int, error) {
	latest := make(map[string]string)

	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews?per_page=%d&page=%d",
			c.owner, c.repo, number, perPage, page)

		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return 0, err
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return 0, classifyStatus(fmt.Sprintf("list reviews for PR #%d", number), resp.StatusCode, body)
		}

		var reviews []githubReview
		if err := json.NewDecoder(resp.Body).Decode(&reviews); err != nil {
			_ = resp.Body.Close()
			return 0, forge.NewErrorWithCause(forge.KindUnknown, err, "failed to decode reviews response")
		}
		_ = resp.Body.Close()

		for i := range reviews {
			rv := &reviews[i]
			if rv.State == reviewStatePending || rv.User.Login == "" {
				continue
			}
			latest[rv.User.Login] = rv.State
		}

		if len(reviews) < perPage {
			break
		}
	}

	count := 0
	for _, state := range latest {
		if state == reviewStateApproved {
			count++
		}
	}

	c.logger.Debug("PR #%d: %d distinct approving reviewers", number, count)
	return count, nil
}

// passingStatusLabels returns the set of status contexts whose most
// recent state on the commit is success. The statuses endpoint lists
// newest first, so the first entry seen for a context wins.
func (c *Client) passingStatusLabels(ctx context.Context, sha string) (forge.LabelSet, error) {
	labels := forge.NewLabelSet()
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/commits/%s/statuses?per_page=%d&page=%d",
			c.owner, c.repo, sha, perPage, page)

		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, classifyStatus(fmt.Sprintf("list statuses for %s", sha), resp.StatusCode, body)
		}

		var statuses []githubStatus
		if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
			_ = resp.Body.Close()
			return nil, forge.NewErrorWithCause(forge.KindUnknown, err, "failed to decode statuses response")
		}
		_ = resp.Body.Close()

		for i := range statuses {
			st := &statuses[i]
			if seen[st.Context] {
				continue
			}
			seen[st.Context] = true
			if st.State == statusStateSuccess {
				labels.Add(st.Context)
			}
		}

		if len(statuses) < perPage {
			break
		}
	}

	return labels, nil
}

// MergePR merges a pull request via the merge endpoint.
func (c *Client) MergePR(ctx context.Context, number int, opts forge.MergeOptions) error {
	method := opts.Method
	if method == "" {
		method = "merge"
	}

	payload := map[string]interface{}{
		"merge_method": method,
	}
	if opts.CommitTitle != "" {
		payload["commit_title"] = opts.CommitTitle
	}
	if opts.CommitMessage != "" {
		payload["commit_message"] = opts.CommitMessage
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/merge", c.owner, c.repo, number)

	resp, err := c.doRequest(ctx, http.MethodPut, path, payload)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		c.logger.Info("Merged PR #%d in %s", number, c.RepoPath())
		return nil

	case http.StatusMethodNotAllowed, http.StatusConflict:
		// 405: not mergeable (conflicts, branch protection).
		// 409: head moved between fetch and merge.
		e := forge.NewErrorWithStatus(forge.KindConflict, resp.StatusCode,
			fmt.Sprintf("merge of PR #%d not allowed", number))
		e.BodyStub = bodyStub(body)
		return e

	case http.StatusNotFound:
		return forge.NewErrorWithStatus(forge.KindNotFound, resp.StatusCode,
			fmt.Sprintf("PR #%d not found in %s", number, c.RepoPath()))

	default:
		return classifyStatus(fmt.Sprintf("merge PR #%d", number), resp.StatusCode, body)
	}
}

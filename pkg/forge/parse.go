package forge

import (
	"net/url"
	"strconv"
	"strings"
)

// ParsePullRequestURL extracts host, owner, repository, and PR number from
// a pull request web URL of the shape:
//
//	https://<host>/<owner>/<repo>/pull/<number>
//
// The API-style "pulls" segment is accepted too. Anything else fails with
// a KindInvalidReference error. No network calls.
func ParsePullRequestURL(raw string) (PullRequestRef, error) {
	var zero PullRequestRef

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return zero, NewError(KindInvalidReference, "pull request URL is empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return zero, NewErrorWithCause(KindInvalidReference, err, "malformed pull request URL: "+raw)
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return zero, NewErrorf(KindInvalidReference, "unsupported URL scheme %q in %s", u.Scheme, raw)
	}
	if u.Host == "" {
		return zero, NewErrorf(KindInvalidReference, "missing host in pull request URL: %s", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || (parts[2] != "pull" && parts[2] != "pulls") {
		return zero, NewErrorf(KindInvalidReference, "expected <owner>/<repo>/pull/<number> path in %s", raw)
	}

	owner, repo := parts[0], parts[1]
	if owner == "" || repo == "" {
		return zero, NewErrorf(KindInvalidReference, "missing owner or repository in pull request URL: %s", raw)
	}

	number, err := strconv.Atoi(parts[3])
	if err != nil || number <= 0 {
		return zero, NewErrorf(KindInvalidReference, "pull request number must be a positive integer, got %q", parts[3])
	}

	return PullRequestRef{
		Host:   u.Host,
		Owner:  owner,
		Repo:   repo,
		Number: number,
	}, nil
}

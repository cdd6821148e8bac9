// Package importer pulls work items into Cadence from external trackers.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/perm"
	"github.com/cadencehq/cadence/internal/workitem"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// perPage is the GitHub list page size.
const perPage = 100

// issueLister abstracts the GitHub issues API, enabling test mocks.
type issueLister interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
}

// Options configure a GitHub import run.
type Options struct {
	ProjectID string
	Owner     string
	Repo      string
	Token     string   // personal access token; empty means unauthenticated
	State     string   // open, closed, all (default open)
	Labels    []string // only import issues carrying all of these labels
	Actor     string   // user performing the import

	// For testing: inject a mock lister instead of the real GitHub API.
	Lister issueLister
}

// Result summarizes an import run. Per-issue failures are collected in
// Errors without aborting the remaining items.
type Result struct {
	Imported int
	Skipped  int // pull requests
	Errors   []string
}

// FromGitHub imports issues from a GitHub repository into a project as work
// items. Issues are created through the normal work-item path, so keys,
// backlog placement and validation all apply. Pull requests are skipped.
func FromGitHub(ctx context.Context, db *gorm.DB, opts Options) (*Result, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("importer: project id is required: %w", models.ErrValidation)
	}
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("importer: owner and repo are required: %w", models.ErrValidation)
	}

	ok, err := perm.CanEditProject(db, opts.Actor, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, perm.Deny("edit_project", opts.ProjectID)
	}

	lister := opts.Lister
	if lister == nil {
		lister = newGitHubLister(ctx, opts.Token)
	}

	state := opts.State
	if state == "" {
		state = "open"
	}

	listOpts := &github.IssueListByRepoOptions{
		State:       state,
		Labels:      opts.Labels,
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	res := &Result{}
	for {
		issues, resp, err := lister.ListByRepo(ctx, opts.Owner, opts.Repo, listOpts)
		if err != nil {
			return nil, fmt.Errorf("importer: list %s/%s: %w", opts.Owner, opts.Repo, err)
		}

		for _, gh := range issues {
			// The issues endpoint interleaves pull requests.
			if gh.IsPullRequest() {
				res.Skipped++
				continue
			}

			_, err := workitem.CreateIssue(db, workitem.CreateIssueOpts{
				ProjectID:   opts.ProjectID,
				Title:       gh.GetTitle(),
				Description: gh.GetBody(),
				Type:        issueTypeForLabels(gh.Labels),
				CreatedBy:   opts.Actor,
			})
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("#%d: %v", gh.GetNumber(), err))
				continue
			}
			res.Imported++
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	return res, nil
}

// newGitHubLister builds the production GitHub client. An empty token gives
// an unauthenticated client (60 requests/hour).
func newGitHubLister(ctx context.Context, token string) issueLister {
	if token == "" {
		return github.NewClient(nil).Issues
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, src)).Issues
}

// issueTypeForLabels maps GitHub labels to a work-item type.
func issueTypeForLabels(labels []*github.Label) string {
	for _, l := range labels {
		switch strings.ToLower(l.GetName()) {
		case "bug":
			return models.TypeBug
		case "enhancement", "feature":
			return models.TypeStory
		}
	}
	return models.TypeTask
}

// Package view applies the user's display choices to a pull request
// snapshot: filtering, grouping by repository and summary statistics.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

// ReviewStatus selects pull requests by their review outcome.
type ReviewStatus string

const (
	ReviewAll              ReviewStatus = "all"
	ReviewApproved         ReviewStatus = "approved"
	ReviewChangesRequested ReviewStatus = "changes_requested"
	ReviewPending          ReviewStatus = "pending"
)

// CIStatus selects pull requests by their combined check state.
type CIStatus string

const (
	CIAll     CIStatus = "all"
	CIPassing CIStatus = "passing"
	CIFailing CIStatus = "failing"
	CIPending CIStatus = "pending"
)

// Filter is the set of predicates chosen by the user.
type Filter struct {
	ShowDrafts   bool         `json:"show_drafts"`
	ReviewStatus ReviewStatus `json:"review_status"`
	CIStatus     CIStatus     `json:"ci_status"`
}

// DefaultFilter shows everything.
func DefaultFilter() Filter {
	return Filter{ShowDrafts: true, ReviewStatus: ReviewAll, CIStatus: CIAll}
}

// ParseFilter builds a Filter from raw user input. Empty values keep the
// defaults.
func ParseFilter(drafts, review, ci string) (Filter, error) {
	f := DefaultFilter()
	if drafts != "" {
		v, err := strconv.ParseBool(drafts)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: drafts must be a boolean, got %q", domain.ErrInvalidArgument, drafts)
		}
		f.ShowDrafts = v
	}
	if review != "" {
		switch s := ReviewStatus(strings.ToLower(review)); s {
		case ReviewAll, ReviewApproved, ReviewChangesRequested, ReviewPending:
			f.ReviewStatus = s
		default:
			return Filter{}, fmt.Errorf("%w: unknown review status %q", domain.ErrInvalidArgument, review)
		}
	}
	if ci != "" {
		switch s := CIStatus(strings.ToLower(ci)); s {
		case CIAll, CIPassing, CIFailing, CIPending:
			f.CIStatus = s
		default:
			return Filter{}, fmt.Errorf("%w: unknown CI status %q", domain.ErrInvalidArgument, ci)
		}
	}
	return f, nil
}

// Match reports whether pr passes every predicate.
func (f Filter) Match(pr domain.PullRequest) bool {
	if !f.ShowDrafts && pr.IsDraft {
		return false
	}
	return f.matchReview(pr) && f.matchCI(pr)
}

func (f Filter) matchReview(pr domain.PullRequest) bool {
	approved, changesRequested := reviewCounts(pr)
	switch f.ReviewStatus {
	case ReviewApproved:
		return approved > 0 && changesRequested == 0
	case ReviewChangesRequested:
		return changesRequested > 0
	case ReviewPending:
		return len(pr.ReviewRequests) > 0 && approved == 0
	default:
		return true
	}
}

func (f Filter) matchCI(pr domain.PullRequest) bool {
	state := pr.StatusCheckRollup.State
	if state == "" {
		state = domain.CheckStatePending
	}
	switch f.CIStatus {
	case CIPassing:
		return state == domain.CheckStateSuccess
	case CIFailing:
		return state == domain.CheckStateFailure || state == domain.CheckStateError
	case CIPending:
		return state == domain.CheckStatePending
	default:
		return true
	}
}

func reviewCounts(pr domain.PullRequest) (approved, changesRequested int) {
	for _, r := range pr.Reviews {
		switch r.State {
		case domain.ReviewStateApproved:
			approved++
		case domain.ReviewStateChangesRequested:
			changesRequested++
		}
	}
	return approved, changesRequested
}

// Apply returns the pull requests matching f, in their original order.
// The input is not modified.
func (f Filter) Apply(prs []domain.PullRequest) []domain.PullRequest {
	out := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if f.Match(pr) {
			out = append(out, pr)
		}
	}
	return out
}

// RepositoryGroup is the pull requests of one repository.
type RepositoryGroup struct {
	Repository   domain.Repository    `json:"repository"`
	PullRequests []domain.PullRequest `json:"pull_requests"`
}

// GroupByRepository groups prs by nameWithOwner. Groups are sorted by name;
// pull requests keep their input order within a group.
func GroupByRepository(prs []domain.PullRequest) []RepositoryGroup {
	index := make(map[string]int)
	var groups []RepositoryGroup
	for _, pr := range prs {
		key := pr.Repository.NameWithOwner
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, RepositoryGroup{Repository: pr.Repository})
		}
		groups[i].PullRequests = append(groups[i].PullRequests, pr)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Repository.NameWithOwner, groups[j].Repository.NameWithOwner
		if la, lb := strings.ToLower(a), strings.ToLower(b); la != lb {
			return la < lb
		}
		return a < b
	})
	if groups == nil {
		return []RepositoryGroup{}
	}
	return groups
}

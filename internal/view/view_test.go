package view

import (
	"testing"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type prOption func(*domain.PullRequest)

func draft() prOption { return func(p *domain.PullRequest) { p.IsDraft = true } }

func ci(state domain.CheckState) prOption {
	return func(p *domain.PullRequest) { p.StatusCheckRollup.State = state }
}

func reviewed(states ...domain.ReviewState) prOption {
	return func(p *domain.PullRequest) {
		for _, s := range states {
			p.Reviews = append(p.Reviews, domain.Review{State: s})
		}
	}
}

func requested() prOption {
	return func(p *domain.PullRequest) {
		p.ReviewRequests = append(p.ReviewRequests, domain.ReviewRequest{Login: "bob"})
	}
}

func inRepo(nameWithOwner string) prOption {
	return func(p *domain.PullRequest) { p.Repository.NameWithOwner = nameWithOwner }
}

func ageHours(h int) prOption {
	return func(p *domain.PullRequest) { p.CreatedAt = now.Add(-time.Duration(h) * time.Hour) }
}

func newPR(id string, opts ...prOption) domain.PullRequest {
	p := domain.PullRequest{
		ID:                id,
		State:             domain.PRStateOpen,
		Repository:        domain.Repository{NameWithOwner: "acme/api"},
		Reviews:           []domain.Review{},
		ReviewRequests:    []domain.ReviewRequest{},
		StatusCheckRollup: domain.StatusCheckRollup{State: domain.CheckStatePending, Contexts: []domain.CheckContext{}},
		Labels:            []domain.Label{},
		CreatedAt:         now,
	}
	for _, o := range opts {
		o(&p)
	}
	return p
}

func ids(prs []domain.PullRequest) []string {
	out := make([]string, len(prs))
	for i, p := range prs {
		out[i] = p.ID
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	prs := []domain.PullRequest{
		newPR("approved", reviewed(domain.ReviewStateApproved), ci(domain.CheckStateSuccess)),
		newPR("approved-then-blocked", reviewed(domain.ReviewStateApproved, domain.ReviewStateChangesRequested), ci(domain.CheckStateFailure)),
		newPR("waiting", requested(), ci(domain.CheckStateError)),
		newPR("waiting-but-approved", requested(), reviewed(domain.ReviewStateApproved)),
		newPR("draft", draft(), ci(domain.CheckStateSuccess)),
		newPR("no-rollup", ci("")),
		newPR("expected", ci(domain.CheckStateExpected)),
	}

	testCases := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{
			name:     "default shows everything",
			filter:   DefaultFilter(),
			expected: []string{"approved", "approved-then-blocked", "waiting", "waiting-but-approved", "draft", "no-rollup", "expected"},
		},
		{
			name:     "hide drafts",
			filter:   Filter{ShowDrafts: false, ReviewStatus: ReviewAll, CIStatus: CIAll},
			expected: []string{"approved", "approved-then-blocked", "waiting", "waiting-but-approved", "no-rollup", "expected"},
		},
		{
			name:     "approved excludes any changes requested",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewApproved, CIStatus: CIAll},
			expected: []string{"approved", "waiting-but-approved"},
		},
		{
			name:     "changes requested",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewChangesRequested, CIStatus: CIAll},
			expected: []string{"approved-then-blocked"},
		},
		{
			name:     "pending requires a request and no approval",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewPending, CIStatus: CIAll},
			expected: []string{"waiting"},
		},
		{
			name:     "passing",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewAll, CIStatus: CIPassing},
			expected: []string{"approved", "draft"},
		},
		{
			name:     "failing includes error",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewAll, CIStatus: CIFailing},
			expected: []string{"approved-then-blocked", "waiting"},
		},
		{
			name:     "pending treats a missing rollup as pending",
			filter:   Filter{ShowDrafts: true, ReviewStatus: ReviewAll, CIStatus: CIPending},
			expected: []string{"waiting-but-approved", "no-rollup"},
		},
		{
			name:     "predicates combine",
			filter:   Filter{ShowDrafts: false, ReviewStatus: ReviewApproved, CIStatus: CIPassing},
			expected: []string{"approved"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(tc.filter.Apply(prs)))
		})
	}
}

func TestParseFilter(t *testing.T) {
	testCases := []struct {
		name        string
		drafts      string
		review      string
		ci          string
		expected    Filter
		expectError bool
	}{
		{name: "defaults", expected: DefaultFilter()},
		{
			name:     "all set",
			drafts:   "false",
			review:   "Changes_Requested",
			ci:       "failing",
			expected: Filter{ShowDrafts: false, ReviewStatus: ReviewChangesRequested, CIStatus: CIFailing},
		},
		{name: "bad drafts", drafts: "maybe", expectError: true},
		{name: "bad review", review: "lgtm", expectError: true},
		{name: "bad ci", ci: "green", expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFilter(tc.drafts, tc.review, tc.ci)
			if tc.expectError {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f)
		})
	}
}

func TestGroupByRepository(t *testing.T) {
	prs := []domain.PullRequest{
		newPR("w1", inRepo("acme/web")),
		newPR("a1", inRepo("acme/api")),
		newPR("w2", inRepo("acme/web")),
		newPR("b1", inRepo("Beta/tools")),
	}

	groups := GroupByRepository(prs)
	require.Len(t, groups, 3)
	assert.Equal(t, "acme/api", groups[0].Repository.NameWithOwner)
	assert.Equal(t, "acme/web", groups[1].Repository.NameWithOwner)
	assert.Equal(t, "Beta/tools", groups[2].Repository.NameWithOwner)
	assert.Equal(t, []string{"w1", "w2"}, ids(groups[1].PullRequests))

	assert.Empty(t, GroupByRepository(nil))
	assert.NotNil(t, GroupByRepository(nil))
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil, now)
		assert.Equal(t, 0, s.Total)
		assert.Zero(t, s.MedianAgeHours)
		assert.Equal(t, 0, s.ByCI[CIPassing])
	})

	t.Run("counts and ages", func(t *testing.T) {
		var prs []domain.PullRequest
		for h := 1; h <= 10; h++ {
			prs = append(prs, newPR(string(rune('a'+h)), ageHours(h)))
		}
		prs[0] = newPR("x", ageHours(1), ci(domain.CheckStateSuccess), reviewed(domain.ReviewStateApproved, domain.ReviewStateCommented))
		prs[1] = newPR("y", ageHours(2), ci(domain.CheckStateFailure), reviewed(domain.ReviewStateChangesRequested), inRepo("acme/web"), draft())
		prs[2] = newPR("z", ageHours(3), requested())

		s := Summarize(prs, now)
		assert.Equal(t, 10, s.Total)
		assert.Equal(t, 1, s.Drafts)
		assert.Equal(t, 2, s.Repositories)
		assert.Equal(t, 1, s.ByCI[CIPassing])
		assert.Equal(t, 1, s.ByCI[CIFailing])
		assert.Equal(t, 8, s.ByCI[CIPending])
		assert.Equal(t, 1, s.ByReview[ReviewApproved])
		assert.Equal(t, 1, s.ByReview[ReviewChangesRequested])
		assert.Equal(t, 1, s.ByReview[ReviewPending])
		assert.InDelta(t, 5.5, s.MedianAgeHours, 0.001)
		assert.InDelta(t, 9.0, s.P90AgeHours, 0.001)
		assert.InDelta(t, 0.3, s.MeanReviews, 0.001)
	})
}

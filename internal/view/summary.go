package view

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

// Summary is the at-a-glance overview of a set of pull requests.
type Summary struct {
	Total        int                  `json:"total"`
	Drafts       int                  `json:"drafts"`
	Repositories int                  `json:"repositories"`
	ByCI         map[CIStatus]int     `json:"by_ci"`
	ByReview     map[ReviewStatus]int `json:"by_review"`
	// Age of the pull requests in hours, measured from creation.
	MedianAgeHours float64 `json:"median_age_hours"`
	// Nearest-rank: an age that at least 90% of the pull requests do not exceed.
	P90AgeHours float64 `json:"p90_age_hours"`
	MeanReviews float64 `json:"mean_reviews"`
}

// ReviewStatusOf classifies pr by the same rules the review filter uses.
// Pull requests matching none of them are counted under ReviewAll.
func ReviewStatusOf(pr domain.PullRequest) ReviewStatus {
	for _, s := range []ReviewStatus{ReviewChangesRequested, ReviewApproved, ReviewPending} {
		if (Filter{ReviewStatus: s}).matchReview(pr) {
			return s
		}
	}
	return ReviewAll
}

// CIStatusOf classifies pr by its combined check state.
func CIStatusOf(pr domain.PullRequest) CIStatus {
	for _, s := range []CIStatus{CIPassing, CIFailing, CIPending} {
		if (Filter{CIStatus: s}).matchCI(pr) {
			return s
		}
	}
	return CIAll
}

// Summarize computes the summary of prs as of now.
func Summarize(prs []domain.PullRequest, now time.Time) Summary {
	s := Summary{
		Total:    len(prs),
		ByCI:     map[CIStatus]int{CIPassing: 0, CIFailing: 0, CIPending: 0},
		ByReview: map[ReviewStatus]int{ReviewApproved: 0, ReviewChangesRequested: 0, ReviewPending: 0},
	}
	if len(prs) == 0 {
		return s
	}

	repos := make(map[string]struct{})
	ages := make(stats.Float64Data, 0, len(prs))
	reviews := make(stats.Float64Data, 0, len(prs))
	for _, pr := range prs {
		if pr.IsDraft {
			s.Drafts++
		}
		repos[pr.Repository.NameWithOwner] = struct{}{}
		if ci := CIStatusOf(pr); ci != CIAll {
			s.ByCI[ci]++
		}
		if rs := ReviewStatusOf(pr); rs != ReviewAll {
			s.ByReview[rs]++
		}
		ages = append(ages, max(now.Sub(pr.CreatedAt).Hours(), 0))
		reviews = append(reviews, float64(len(pr.Reviews)))
	}
	s.Repositories = len(repos)

	// Errors only occur on empty input, which is handled above.
	s.MedianAgeHours, _ = stats.Median(ages)
	s.P90AgeHours, _ = stats.PercentileNearestRank(ages, 90)
	s.MeanReviews, _ = stats.Mean(reviews)
	for _, v := range []*float64{&s.MedianAgeHours, &s.P90AgeHours, &s.MeanReviews} {
		*v, _ = stats.Round(*v, 2)
	}
	return s
}

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/shurcooL/githubv4"
)

// MergeInput holds the options of a merge. An empty Method lets upstream
// pick the repository default.
type MergeInput struct {
	Method         githubv4.PullRequestMergeMethod
	CommitHeadline string
	CommitBody     string
}

type pullRequestStateNode struct {
	ID       string
	State    githubv4.PullRequestState
	Merged   bool
	Closed   bool
	MergedAt *githubv4.DateTime
	ClosedAt *githubv4.DateTime
}

func (n pullRequestStateNode) result(action string) *domain.MutationResult {
	return &domain.MutationResult{
		Action:        action,
		PullRequestID: n.ID,
		State:         domain.PRState(n.State),
		Merged:        n.Merged,
		Closed:        n.Closed,
		MergedAt:      timePtr(n.MergedAt),
		ClosedAt:      timePtr(n.ClosedAt),
	}
}

// AddReview submits a review with the given event.
func (g *GitHubGateway) AddReview(ctx context.Context, pullRequestID string, event githubv4.PullRequestReviewEvent, body string) (*domain.MutationResult, error) {
	var m struct {
		AddPullRequestReview struct {
			PullRequestReview struct {
				ID    string
				State githubv4.PullRequestReviewState
			}
		} `graphql:"addPullRequestReview(input: $input)"`
	}
	input := githubv4.AddPullRequestReviewInput{
		PullRequestID: githubv4.ID(pullRequestID),
		Event:         &event,
	}
	if body != "" {
		input.Body = githubv4.NewString(githubv4.String(body))
	}
	if err := g.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("failed to submit %s review: %w", event, err)
	}
	review := m.AddPullRequestReview.PullRequestReview
	return &domain.MutationResult{
		Action:        "review",
		PullRequestID: pullRequestID,
		ReviewID:      review.ID,
		ReviewState:   string(review.State),
	}, nil
}

// AddComment posts an issue comment on the pull request.
func (g *GitHubGateway) AddComment(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error) {
	var m struct {
		AddComment struct {
			CommentEdge struct {
				Node struct {
					ID string
				}
			}
		} `graphql:"addComment(input: $input)"`
	}
	input := githubv4.AddCommentInput{
		SubjectID: githubv4.ID(pullRequestID),
		Body:      githubv4.String(body),
	}
	if err := g.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &domain.MutationResult{
		Action:        "comment",
		PullRequestID: pullRequestID,
		CommentID:     m.AddComment.CommentEdge.Node.ID,
	}, nil
}

// MergePullRequest merges the pull request.
func (g *GitHubGateway) MergePullRequest(ctx context.Context, pullRequestID string, opts MergeInput) (*domain.MutationResult, error) {
	var m struct {
		MergePullRequest struct {
			PullRequest pullRequestStateNode
		} `graphql:"mergePullRequest(input: $input)"`
	}
	input := githubv4.MergePullRequestInput{PullRequestID: githubv4.ID(pullRequestID)}
	if opts.Method != "" {
		method := opts.Method
		input.MergeMethod = &method
	}
	if opts.CommitHeadline != "" {
		input.CommitHeadline = githubv4.NewString(githubv4.String(opts.CommitHeadline))
	}
	if opts.CommitBody != "" {
		input.CommitBody = githubv4.NewString(githubv4.String(opts.CommitBody))
	}
	if err := g.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("failed to merge pull request: %w", err)
	}
	return m.MergePullRequest.PullRequest.result("merge"), nil
}

// ClosePullRequest closes the pull request without merging.
func (g *GitHubGateway) ClosePullRequest(ctx context.Context, pullRequestID string) (*domain.MutationResult, error) {
	var m struct {
		ClosePullRequest struct {
			PullRequest pullRequestStateNode
		} `graphql:"closePullRequest(input: $input)"`
	}
	input := githubv4.ClosePullRequestInput{PullRequestID: githubv4.ID(pullRequestID)}
	if err := g.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("failed to close pull request: %w", err)
	}
	return m.ClosePullRequest.PullRequest.result("close"), nil
}

// ReopenPullRequest reopens a closed pull request.
func (g *GitHubGateway) ReopenPullRequest(ctx context.Context, pullRequestID string) (*domain.MutationResult, error) {
	var m struct {
		ReopenPullRequest struct {
			PullRequest pullRequestStateNode
		} `graphql:"reopenPullRequest(input: $input)"`
	}
	input := githubv4.ReopenPullRequestInput{PullRequestID: githubv4.ID(pullRequestID)}
	if err := g.mutate(ctx, &m, input); err != nil {
		return nil, fmt.Errorf("failed to reopen pull request: %w", err)
	}
	return m.ReopenPullRequest.PullRequest.result("reopen"), nil
}

func timePtr(dt *githubv4.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := dt.Time
	return &t
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/events"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
)

// MergeOptions are the caller-supplied merge parameters. Method is one of
// MERGE, SQUASH or REBASE (case-insensitive); empty uses the repository default.
type MergeOptions struct {
	Method         string `json:"method"`
	CommitHeadline string `json:"commit_headline"`
	CommitBody     string `json:"commit_body"`
}

// Executor runs single pull request write operations. Merge preconditions
// (passing checks, open state) are left to upstream. Every success publishes
// an invalidation for the list and detail views; failures publish nothing.
type Executor struct {
	mutator   gateway.Mutator
	publisher events.Publisher
	logger    *zap.SugaredLogger
}

// NewExecutor creates a new Executor instance.
func NewExecutor(mutator gateway.Mutator, publisher events.Publisher, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		mutator:   mutator,
		publisher: publisher,
		logger:    logger,
	}
}

// Approve submits an approving review. body is optional.
func (e *Executor) Approve(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	return e.run("approve", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.AddReview(ctx, pullRequestID, githubv4.PullRequestReviewEventApprove, body)
	})
}

// RequestChanges submits a review requesting changes. body is required.
func (e *Executor) RequestChanges(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	return e.run("request-changes", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.AddReview(ctx, pullRequestID, githubv4.PullRequestReviewEventRequestChanges, body)
	})
}

// Comment posts a comment. body is required.
func (e *Executor) Comment(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}
	return e.run("comment", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.AddComment(ctx, pullRequestID, body)
	})
}

// Merge merges the pull request.
func (e *Executor) Merge(ctx context.Context, pullRequestID string, opts MergeOptions) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	input := gateway.MergeInput{
		CommitHeadline: strings.TrimSpace(opts.CommitHeadline),
		CommitBody:     opts.CommitBody,
	}
	switch method := githubv4.PullRequestMergeMethod(strings.ToUpper(strings.TrimSpace(opts.Method))); method {
	case "":
	case githubv4.PullRequestMergeMethodMerge, githubv4.PullRequestMergeMethodSquash, githubv4.PullRequestMergeMethodRebase:
		input.Method = method
	default:
		return nil, fmt.Errorf("%w: unknown merge method %q", domain.ErrInvalidArgument, opts.Method)
	}
	return e.run("merge", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.MergePullRequest(ctx, pullRequestID, input)
	})
}

// Close closes the pull request.
func (e *Executor) Close(ctx context.Context, pullRequestID string) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	return e.run("close", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.ClosePullRequest(ctx, pullRequestID)
	})
}

// Reopen reopens a closed pull request.
func (e *Executor) Reopen(ctx context.Context, pullRequestID string) (*domain.MutationResult, error) {
	if err := validateID(pullRequestID); err != nil {
		return nil, err
	}
	return e.run("reopen", pullRequestID, func() (*domain.MutationResult, error) {
		return e.mutator.ReopenPullRequest(ctx, pullRequestID)
	})
}

func (e *Executor) run(action, pullRequestID string, call func() (*domain.MutationResult, error)) (*domain.MutationResult, error) {
	result, err := call()
	if err != nil {
		e.logger.Warnw("mutation failed", "action", action, "pull_request_id", pullRequestID, "error", err)
		return nil, err
	}
	result.Action = action
	e.logger.Infow("mutation succeeded", "action", action, "pull_request_id", pullRequestID)
	e.publisher.Publish(events.Invalidation{
		PullRequestID: pullRequestID,
		Action:        action,
		Scopes:        []events.Scope{events.ScopeList, events.ScopeDetail},
	})
	return result, nil
}

func validateID(pullRequestID string) error {
	if strings.TrimSpace(pullRequestID) == "" {
		return fmt.Errorf("%w: pull request id is required", domain.ErrInvalidArgument)
	}
	return nil
}

func validateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: body is required", domain.ErrInvalidArgument)
	}
	return nil
}

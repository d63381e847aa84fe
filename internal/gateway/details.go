package gateway

import (
	"context"
	"fmt"
	"math"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/shurcooL/githubv4"
)

// FetchPullRequestDetail fetches the full view of one pull request.
func (g *GitHubGateway) FetchPullRequestDetail(ctx context.Context, repo domain.RepositoryRef, number int) (*PullRequestDetailNode, error) {
	if number <= 0 || number > math.MaxInt32 {
		return nil, fmt.Errorf("%w: pull request number %d out of range", domain.ErrInvalidArgument, number)
	}
	var q struct {
		Repository *struct {
			PullRequest *PullRequestDetailNode `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]any{
		"owner":  githubv4.String(repo.Owner),
		"name":   githubv4.String(repo.Name),
		"number": githubv4.Int(number),
	}
	partial, err := g.query(ctx, &q, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s#%d: %w", repo, number, err)
	}
	if q.Repository == nil || q.Repository.PullRequest == nil {
		notFound := &APIError{Class: domain.ErrNotFound, StatusCode: 200, Errors: partial}
		return nil, fmt.Errorf("failed to fetch %s#%d: %w", repo, number, notFound)
	}
	return q.Repository.PullRequest, nil
}

package gateway

import (
	"context"
	"fmt"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

// AliasedResponse is one composite response keyed by repository alias.
// Errors holds the GraphQL errors of a partially successful response.
type AliasedResponse struct {
	Viewer       string
	Repositories map[string]*RepositoryPullRequests
	Errors       []GraphQLError
}

// ErrorsByAlias groups the response errors by the alias they belong to.
// Errors without a path are keyed by the empty string.
func (r *AliasedResponse) ErrorsByAlias() map[string][]GraphQLError {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make(map[string][]GraphQLError)
	for _, e := range r.Errors {
		out[e.Alias()] = append(out[e.Alias()], e)
	}
	return out
}

// Execute issues one composite request for batch. Transient failures are
// retried; a response carrying both data and errors is returned with the
// errors attached rather than failing.
func (g *GitHubGateway) Execute(ctx context.Context, batch *QueryBatch) (*AliasedResponse, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: nil query batch", domain.ErrInvalidArgument)
	}
	result := batch.newResult()
	partial, err := g.query(ctx, result, batch.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to execute aggregation query for %d repositories: %w", len(batch.Repos), err)
	}
	if len(partial) > 0 {
		g.logger.Warnw("aggregation query returned partial data", "repositories", len(batch.Repos), "errors", len(partial))
	}
	return batch.response(result, partial), nil
}

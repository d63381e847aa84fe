// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentBatches bounds the composite requests in flight per cycle.
const maxConcurrentBatches = 4

// Aggregator is the use case for aggregating open pull requests.
// It runs one aggregation cycle: execute every batch, merge, normalize.
type Aggregator struct {
	client gateway.AggregationClient
	logger *zap.SugaredLogger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(client gateway.AggregationClient, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{
		client: client,
		logger: logger,
	}
}

// Aggregate runs one aggregation cycle for query. Failures are best effort:
// a batch or alias that failed becomes a RepoFailure while the rest of the
// result is kept. An error is returned only when every batch failed or when
// upstream rejected the credential.
func (a *Aggregator) Aggregate(ctx context.Context, query *gateway.AggregationQuery) (*domain.AggregationResult, error) {
	a.logger.Debugw("starting aggregation", "repositories", len(query.Repos), "batches", len(query.Batches))

	responses := make([]*gateway.AliasedResponse, len(query.Batches))
	batchErrs := make([]error, len(query.Batches))

	// Use an errgroup to execute the batches concurrently. Only an
	// authentication failure cancels the remaining batches.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentBatches)
	for i, batch := range query.Batches {
		eg.Go(func() error {
			resp, err := a.client.Execute(egCtx, batch)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return err
				}
				batchErrs[i] = err
				return nil
			}
			responses[i] = resp
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := &gateway.AliasedResponse{Repositories: make(map[string]*gateway.RepositoryPullRequests)}
	result := &domain.AggregationResult{Failures: []domain.RepoFailure{}}
	failed := make(map[domain.RepositoryRef]struct{})
	var firstErr error
	for i, batch := range query.Batches {
		if batchErrs[i] != nil {
			if firstErr == nil {
				firstErr = batchErrs[i]
			}
			for _, ref := range batch.Repos {
				failed[ref] = struct{}{}
				result.Failures = append(result.Failures, domain.RepoFailure{Repository: ref.String(), Message: batchErrs[i].Error()})
			}
			continue
		}
		resp := responses[i]
		if merged.Viewer == "" {
			merged.Viewer = resp.Viewer
		}
		for alias, repo := range resp.Repositories {
			merged.Repositories[alias] = repo
		}
		merged.Errors = append(merged.Errors, resp.Errors...)
	}
	if firstErr != nil && len(failed) == len(query.Repos) {
		return nil, fmt.Errorf("failed to aggregate pull requests: %w", firstErr)
	}

	records, skipped := Normalize(merged, query.Repos)
	byAlias := merged.ErrorsByAlias()
	for _, ref := range skipped {
		if _, ok := failed[ref]; ok {
			continue
		}
		msg := "repository returned no data"
		if errs := byAlias[gateway.Alias(ref.Owner, ref.Name)]; len(errs) > 0 {
			msg = errs[0].Message
		}
		a.logger.Warnw("skipping repository", "repository", ref.String(), "reason", msg)
		result.Failures = append(result.Failures, domain.RepoFailure{Repository: ref.String(), Message: msg})
	}

	result.Viewer = merged.Viewer
	result.PullRequests = records
	a.logger.Debugw("aggregation complete", "pull_requests", len(records), "failures", len(result.Failures))
	return result, nil
}

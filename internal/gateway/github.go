// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout              = 30 * time.Second
	defaultMaxAttempts          = 3
	defaultRetryInitialInterval = 300 * time.Millisecond
	secondaryRateLimitSleep     = time.Minute
)

// AggregationClient executes one composite aggregation request.
type AggregationClient interface {
	Execute(ctx context.Context, batch *QueryBatch) (*AliasedResponse, error)
}

// DetailFetcher fetches the full view of a single pull request.
type DetailFetcher interface {
	FetchPullRequestDetail(ctx context.Context, repo domain.RepositoryRef, number int) (*PullRequestDetailNode, error)
}

// Mutator executes single pull request write operations.
type Mutator interface {
	AddReview(ctx context.Context, pullRequestID string, event githubv4.PullRequestReviewEvent, body string) (*domain.MutationResult, error)
	AddComment(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error)
	MergePullRequest(ctx context.Context, pullRequestID string, opts MergeInput) (*domain.MutationResult, error)
	ClosePullRequest(ctx context.Context, pullRequestID string) (*domain.MutationResult, error)
	ReopenPullRequest(ctx context.Context, pullRequestID string) (*domain.MutationResult, error)
}

// CatalogFetcher lists selectable repositories and the viewer's account.
type CatalogFetcher interface {
	FetchRepositories(ctx context.Context) (*domain.RepositoryCatalog, error)
	FetchAccount(ctx context.Context) (*domain.Account, error)
}

// Options configures the gateway. Zero values select GitHub.com defaults.
type Options struct {
	GraphQLURL           string
	RESTURL              string
	Timeout              time.Duration
	MaxAttempts          int
	RetryInitialInterval time.Duration
	// BaseTransport sits under the rate limit waiter; nil means http.DefaultTransport.
	BaseTransport http.RoundTripper
}

// GitHubGateway is the concrete implementation of the gateway interfaces.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.SugaredLogger
	maxAttempts   int
	retryInitial  time.Duration
}

// NewGitHubGateway creates a gateway whose requests carry bearer tokens from
// tokens. The transport stack is oauth2 → recording → secondary rate limit waiter.
func NewGitHubGateway(tokens oauth2.TokenSource, logger *zap.SugaredLogger, opts Options) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(opts.BaseTransport, github_ratelimit.WithSingleSleepLimit(secondaryRateLimitSleep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := &http.Client{
		Timeout: opts.Timeout,
		Transport: &oauth2.Transport{
			Base:   &recordingTransport{base: rateLimitWaiter},
			Source: tokens,
		},
	}

	restClient := github.NewClient(httpClient)
	if opts.RESTURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(opts.RESTURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse REST URL: %w", err)
		}
		restClient.BaseURL = baseURL
	}

	graphqlClient := githubv4.NewClient(httpClient)
	if opts.GraphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}

	g := &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
		maxAttempts:   opts.MaxAttempts,
		retryInitial:  opts.RetryInitialInterval,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.retryInitial <= 0 {
		g.retryInitial = defaultRetryInitialInterval
	}
	return g, nil
}

// query runs a read query, retrying transient failures with exponential
// backoff. When upstream returns data together with errors, the data is kept
// in q and the errors are returned with a nil error.
func (g *GitHubGateway) query(ctx context.Context, q any, variables map[string]any) ([]GraphQLError, error) {
	var partial []GraphQLError
	attempt := 0
	op := func() error {
		attempt++
		callCtx, rec := withCallRecord(ctx)
		err := g.graphqlClient.Query(callCtx, q, variables)
		if err == nil {
			partial = nil
			return nil
		}
		if rec.partial() {
			partial = rec.errors
			return nil
		}
		classified := classify(err, rec)
		if errors.Is(classified, domain.ErrTransient) {
			g.logger.Debugw("transient GraphQL failure", "attempt", attempt, "error", classified)
			return classified
		}
		return backoff.Permanent(classified)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTransient) {
			return nil, &APIError{Class: domain.ErrTransient, Err: err}
		}
		return nil, err
	}
	return partial, nil
}

// mutate runs a mutation once. Mutations change state and are never retried.
func (g *GitHubGateway) mutate(ctx context.Context, m any, input githubv4.Input) error {
	callCtx, rec := withCallRecord(ctx)
	if err := g.graphqlClient.Mutate(callCtx, m, input, nil); err != nil {
		return classify(err, rec)
	}
	return nil
}

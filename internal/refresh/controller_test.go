package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/events"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type aggregateFunc func(ctx context.Context, q *gateway.AggregationQuery, call int) (*domain.AggregationResult, error)

type fakeAggregator struct {
	mu    sync.Mutex
	calls int
	fn    aggregateFunc
}

func (f *fakeAggregator) Aggregate(ctx context.Context, q *gateway.AggregationQuery) (*domain.AggregationResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(ctx, q, call)
}

func (f *fakeAggregator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCredentials struct {
	err    error
	unauth atomic.Int32
}

func (f *fakeCredentials) Token() (*oauth2.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "t"}, nil
}

func (f *fakeCredentials) OnUnauthenticated() {
	f.unauth.Add(1)
}

type fakeLoader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeLoader) Get(_ context.Context, repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	d := &domain.PullRequestDetail{}
	d.ID = fmt.Sprintf("%s#%d", repo, number)
	d.Number = number
	return d, nil
}

func (f *fakeLoader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func result(viewer string, prs ...domain.PullRequest) *domain.AggregationResult {
	return &domain.AggregationResult{Viewer: viewer, PullRequests: prs, Failures: []domain.RepoFailure{}}
}

func pr(id string, state domain.PRState) domain.PullRequest {
	return domain.PullRequest{ID: id, State: state}
}

type harness struct {
	controller  *Controller
	aggregator  *fakeAggregator
	credentials *fakeCredentials
	loader      *fakeLoader
	bus         *events.Bus
}

func startController(t *testing.T, fn aggregateFunc, opts Options) *harness {
	t.Helper()
	h := &harness{
		aggregator:  &fakeAggregator{fn: fn},
		credentials: &fakeCredentials{},
		loader:      &fakeLoader{},
		bus:         events.NewBus(),
	}
	h.controller = NewController(h.aggregator, h.loader, h.credentials, h.bus, zap.NewNop().Sugar(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.controller.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func TestController_IdleSelection(t *testing.T) {
	h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
		return result("octocat"), nil
	}, Options{PollInterval: 10 * time.Millisecond})

	require.NoError(t, h.controller.SetRepositorySelection(nil))
	h.controller.Refetch()

	assert.Never(t, func() bool { return h.aggregator.Calls() > 0 }, 50*time.Millisecond, tick)
	snap := h.controller.Snapshot()
	assert.Empty(t, snap.PullRequests)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
}

func TestController_InvalidSelection(t *testing.T) {
	h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
		return result("octocat"), nil
	}, Options{})

	err := h.controller.SetRepositorySelection([]string{"acme/api", "not a repo"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 0, h.aggregator.Calls())
}

func TestController_SelectionFetchesImmediately(t *testing.T) {
	h := startController(t, func(_ context.Context, q *gateway.AggregationQuery, _ int) (*domain.AggregationResult, error) {
		return result("octocat", pr("PR_"+q.Key, domain.PRStateOpen)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/web", "acme/api"}))

	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return len(snap.PullRequests) == 1 && !snap.Loading
	}, waitFor, tick)
	snap := h.controller.Snapshot()
	assert.Equal(t, "acme/api,acme/web", snap.Key)
	assert.Equal(t, "PR_acme/api,acme/web", snap.PullRequests[0].ID)
	assert.Equal(t, "octocat", snap.Viewer)
	assert.NotEmpty(t, snap.Version)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestController_SameSelectionIsNoop(t *testing.T) {
	h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
		return result("octocat"), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/web", "acme/api"}))
	assert.Eventually(t, func() bool { return h.aggregator.Calls() == 1 }, waitFor, tick)

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api", "acme/web", "acme/api"}))
	assert.Never(t, func() bool { return h.aggregator.Calls() > 1 }, 50*time.Millisecond, tick)
}

func TestController_StaleWhileRevalidate(t *testing.T) {
	release := make(chan struct{})
	h := startController(t, func(_ context.Context, q *gateway.AggregationQuery, call int) (*domain.AggregationResult, error) {
		if call == 2 {
			<-release
		}
		return result("octocat", pr("PR_"+q.Key, domain.PRStateOpen)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return len(snap.PullRequests) == 1 && !snap.Loading
	}, waitFor, tick)

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/web"}))
	assert.Eventually(t, func() bool { return h.controller.Snapshot().Loading }, waitFor, tick)
	snap := h.controller.Snapshot()
	require.Len(t, snap.PullRequests, 1)
	assert.Equal(t, "PR_acme/api", snap.PullRequests[0].ID)

	close(release)
	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return !snap.Loading && len(snap.PullRequests) == 1 && snap.PullRequests[0].ID == "PR_acme/web"
	}, waitFor, tick)
	assert.Equal(t, "acme/web", h.controller.Snapshot().Key)
}

func TestController_FailedFetchKeepsRecords(t *testing.T) {
	h := startController(t, func(_ context.Context, _ *gateway.AggregationQuery, call int) (*domain.AggregationResult, error) {
		if call > 1 {
			return nil, &gateway.APIError{Class: domain.ErrTransient, StatusCode: 502}
		}
		return result("octocat", pr("PR_1", domain.PRStateOpen)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool { return len(h.controller.Snapshot().PullRequests) == 1 }, waitFor, tick)

	h.controller.Refetch()
	assert.Eventually(t, func() bool { return h.controller.Snapshot().Err != nil }, waitFor, tick)
	snap := h.controller.Snapshot()
	assert.ErrorIs(t, snap.Err, domain.ErrTransient)
	assert.Len(t, snap.PullRequests, 1)
	assert.False(t, snap.Loading)
	assert.Equal(t, int32(0), h.credentials.unauth.Load())
}

func TestController_SupersededSelectionResultDropped(t *testing.T) {
	release := make(chan struct{})
	h := startController(t, func(_ context.Context, q *gateway.AggregationQuery, _ int) (*domain.AggregationResult, error) {
		if q.Key == "acme/api" {
			<-release
		}
		return result("octocat", pr("PR_"+q.Key, domain.PRStateOpen)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool { return h.aggregator.Calls() == 1 }, waitFor, tick)
	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/web"}))
	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return len(snap.PullRequests) == 1 && snap.PullRequests[0].ID == "PR_acme/web"
	}, waitFor, tick)

	close(release)
	assert.Never(t, func() bool {
		return h.controller.Snapshot().PullRequests[0].ID != "PR_acme/web"
	}, 50*time.Millisecond, tick)
	assert.Equal(t, "acme/web", h.controller.Snapshot().Key)
}

func TestController_InvalidationSupersedesOlderFetch(t *testing.T) {
	release := make(chan struct{})
	h := startController(t, func(_ context.Context, _ *gateway.AggregationQuery, call int) (*domain.AggregationResult, error) {
		if call == 1 {
			<-release
			return result("octocat", pr("PR_1", domain.PRStateOpen)), nil
		}
		return result("octocat", pr("PR_1", domain.PRStateMerged)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool { return h.aggregator.Calls() == 1 }, waitFor, tick)

	h.bus.Publish(events.Invalidation{PullRequestID: "PR_1", Action: "merge", Scopes: []events.Scope{events.ScopeList, events.ScopeDetail}})
	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return len(snap.PullRequests) == 1 && snap.PullRequests[0].State == domain.PRStateMerged
	}, waitFor, tick)
	assert.False(t, h.controller.Snapshot().Stale)

	close(release)
	assert.Eventually(t, func() bool { return !h.controller.Snapshot().Loading }, waitFor, tick)
	assert.Never(t, func() bool {
		return h.controller.Snapshot().PullRequests[0].State != domain.PRStateMerged
	}, 50*time.Millisecond, tick)
}

func TestController_InvalidationMarksStaleUntilRefreshed(t *testing.T) {
	release := make(chan struct{})
	h := startController(t, func(_ context.Context, _ *gateway.AggregationQuery, call int) (*domain.AggregationResult, error) {
		if call == 2 {
			<-release
		}
		return result("octocat", pr("PR_1", domain.PRStateOpen)), nil
	}, Options{})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool { return len(h.controller.Snapshot().PullRequests) == 1 }, waitFor, tick)

	h.bus.Publish(events.Invalidation{PullRequestID: "PR_1", Scopes: []events.Scope{events.ScopeList}})
	assert.Eventually(t, func() bool { return h.controller.Snapshot().Stale }, waitFor, tick)

	close(release)
	assert.Eventually(t, func() bool {
		snap := h.controller.Snapshot()
		return !snap.Stale && !snap.Loading
	}, waitFor, tick)
}

func TestController_Unauthenticated(t *testing.T) {
	t.Run("rejected by upstream", func(t *testing.T) {
		h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
			return nil, fmt.Errorf("aggregate: %w", &gateway.APIError{Class: domain.ErrUnauthenticated, StatusCode: 401})
		}, Options{})

		require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
		assert.Eventually(t, func() bool { return h.credentials.unauth.Load() == 1 }, waitFor, tick)
		assert.ErrorIs(t, h.controller.Snapshot().Err, domain.ErrUnauthenticated)
	})

	t.Run("missing credential skips the network", func(t *testing.T) {
		h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
			return result("octocat"), nil
		}, Options{})
		h.credentials.err = fmt.Errorf("%w: no credential", domain.ErrUnauthenticated)

		require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
		assert.Eventually(t, func() bool { return h.credentials.unauth.Load() == 1 }, waitFor, tick)
		assert.Equal(t, 0, h.aggregator.Calls())
		assert.True(t, errors.Is(h.controller.Snapshot().Err, domain.ErrUnauthenticated))
	})
}

func TestController_Polling(t *testing.T) {
	h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
		return result("octocat"), nil
	}, Options{PollInterval: 10 * time.Millisecond})

	require.NoError(t, h.controller.SetRepositorySelection([]string{"acme/api"}))
	assert.Eventually(t, func() bool { return h.aggregator.Calls() >= 3 }, waitFor, tick)

	h.controller.SetPollInterval(0)
	assert.Eventually(t, func() bool { return h.controller.Snapshot().PollInterval == 0 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	settled := h.aggregator.Calls()
	assert.Never(t, func() bool { return h.aggregator.Calls() > settled }, 60*time.Millisecond, tick)

	h.controller.Refetch()
	assert.Eventually(t, func() bool { return h.aggregator.Calls() == settled+1 }, waitFor, tick)
}

func TestController_DetailCache(t *testing.T) {
	h := startController(t, func(context.Context, *gateway.AggregationQuery, int) (*domain.AggregationResult, error) {
		return result("octocat"), nil
	}, Options{})
	repo := domain.RepositoryRef{Owner: "acme", Name: "api"}
	ctx := context.Background()

	d, err := h.controller.Detail(ctx, repo, 7)
	require.NoError(t, err)
	assert.Equal(t, "acme/api#7", d.ID)
	_, err = h.controller.Detail(ctx, repo, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, h.loader.Calls())

	h.bus.Publish(events.Invalidation{PullRequestID: "acme/api#7", Scopes: []events.Scope{events.ScopeDetail}})
	assert.Eventually(t, func() bool { return h.controller.details.Len() == 0 }, waitFor, tick)

	_, err = h.controller.Detail(ctx, repo, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, h.loader.Calls())
}

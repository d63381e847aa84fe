// Package refresh keeps the aggregated pull request snapshot live: it polls,
// serves manual refetches and reacts to invalidations, while guaranteeing
// that readers always see a complete snapshot.
package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/events"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	defaultCycleTimeout = time.Minute
	commandQueueSize    = 64
)

// Aggregator runs one aggregation cycle.
type Aggregator interface {
	Aggregate(ctx context.Context, query *gateway.AggregationQuery) (*domain.AggregationResult, error)
}

// DetailLoader loads one pull request's detail view.
type DetailLoader interface {
	Get(ctx context.Context, repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, error)
}

// CredentialProvider supplies the credential and receives the unauthenticated signal.
type CredentialProvider interface {
	Token() (*oauth2.Token, error)
	OnUnauthenticated()
}

// Snapshot is an immutable view of the aggregated pull requests. While a
// fetch is in flight Loading is set and the previous records stay visible.
type Snapshot struct {
	PullRequests []domain.PullRequest `json:"pull_requests"`
	Failures     []domain.RepoFailure `json:"failures"`
	Loading      bool                 `json:"loading"`
	Err          error                `json:"-"`
	// Stale is set after an invalidation until a fetch issued after it lands.
	Stale        bool          `json:"stale"`
	Viewer       string        `json:"viewer,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Version      string        `json:"version,omitempty"`
	Key          string        `json:"key"`
	PollInterval time.Duration `json:"poll_interval"`
}

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
	// CycleTimeout bounds one aggregation cycle, retries included.
	CycleTimeout time.Duration
}

// Controller owns the current snapshot and its refresh schedule. All mutable
// state belongs to the goroutine running Run; other methods only send it
// commands or read the published snapshot.
type Controller struct {
	aggregator   Aggregator
	loader       DetailLoader
	credentials  CredentialProvider
	sub          *events.Subscription
	queries      *gateway.QueryCache
	details      *DetailCache
	logger       *zap.SugaredLogger
	cycleTimeout time.Duration

	snapshot atomic.Pointer[Snapshot]
	commands chan command
	results  chan fetchResult
	done     chan struct{}

	// loop state, owned by Run
	query        *gateway.AggregationQuery
	interval     time.Duration
	ticker       *time.Ticker
	epoch        uint64
	appliedEpoch uint64
	seq          uint64
	inflight     map[uint64]context.CancelFunc
}

type command any

type selectCommand struct{ query *gateway.AggregationQuery }

type intervalCommand struct{ interval time.Duration }

type refetchCommand struct{}

type fetchResult struct {
	seq     uint64
	key     string
	epoch   uint64
	cycleID string
	result  *domain.AggregationResult
	err     error
}

// NewController creates an idle controller subscribed to bus. Call Run to start it.
func NewController(aggregator Aggregator, loader DetailLoader, credentials CredentialProvider, bus *events.Bus, logger *zap.SugaredLogger, opts Options) *Controller {
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = defaultCycleTimeout
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	}
	c := &Controller{
		aggregator:   aggregator,
		loader:       loader,
		credentials:  credentials,
		sub:          bus.Subscribe(),
		queries:      gateway.NewQueryCache(opts.BatchSize),
		details:      NewDetailCache(),
		logger:       logger,
		cycleTimeout: opts.CycleTimeout,
		commands:     make(chan command, commandQueueSize),
		results:      make(chan fetchResult),
		done:         make(chan struct{}),
		interval:     opts.PollInterval,
		inflight:     make(map[uint64]context.CancelFunc),
	}
	c.snapshot.Store(&Snapshot{PullRequests: []domain.PullRequest{}, Failures: []domain.RepoFailure{}, PollInterval: c.interval})
	return c
}

// Snapshot returns the current snapshot.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// SetRepositorySelection replaces the selected repositories. The identifiers
// are validated and canonicalized here; an unchanged set is a no-op.
func (c *Controller) SetRepositorySelection(ids []string) error {
	refs, _, err := domain.CanonicalSelection(ids)
	if err != nil {
		return err
	}
	query, err := c.queries.Get(refs)
	if err != nil {
		return err
	}
	c.send(selectCommand{query: query})
	return nil
}

// SetPollInterval changes the polling interval. Zero disables polling;
// refreshes then happen only on Refetch and invalidations.
func (c *Controller) SetPollInterval(interval time.Duration) {
	c.send(intervalCommand{interval: max(interval, 0)})
}

// Refetch requests an immediate out-of-schedule fetch. It does not wait.
func (c *Controller) Refetch() {
	c.send(refetchCommand{})
}

// Detail returns a pull request's detail view, cached until the next
// invalidation that names it.
func (c *Controller) Detail(ctx context.Context, repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, error) {
	if d, ok := c.details.Get(repo, number); ok {
		return d, nil
	}
	generation := c.details.Generation()
	d, err := c.loader.Get(ctx, repo, number)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			c.credentials.OnUnauthenticated()
		}
		return nil, err
	}
	c.details.Put(repo, number, d, generation)
	return d, nil
}

func (c *Controller) send(cmd command) {
	select {
	case c.commands <- cmd:
	case <-c.done:
	}
}

// Run processes commands, ticks, invalidations and fetch results until ctx
// is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.sub.Close()
	defer c.cancelInflight()
	defer c.stopTicker()

	c.logger.Infow("refresh controller started", "poll_interval", c.interval)
	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C
		}
		select {
		case <-ctx.Done():
			c.logger.Infow("refresh controller stopped")
			return nil
		case cmd := <-c.commands:
			c.handle(ctx, cmd)
		case <-tick:
			c.startFetch(ctx, "poll")
		case <-c.sub.Ready():
			c.invalidate(ctx, c.sub.Drain())
		case r := <-c.results:
			c.apply(r)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd command) {
	switch cmd := cmd.(type) {
	case selectCommand:
		if c.query != nil && c.query.Key == cmd.query.Key {
			return
		}
		c.cancelInflight()
		c.query = cmd.query
		c.logger.Infow("repository selection changed", "repositories", len(cmd.query.Repos))
		if c.idle() {
			c.stopTicker()
			c.publish(func(s *Snapshot) {
				*s = Snapshot{PullRequests: []domain.PullRequest{}, Failures: []domain.RepoFailure{}, PollInterval: c.interval}
			})
			return
		}
		c.publish(func(s *Snapshot) { s.Err = nil })
		c.reschedule(ctx)
	case intervalCommand:
		if cmd.interval == c.interval {
			return
		}
		c.interval = cmd.interval
		c.logger.Infow("poll interval changed", "poll_interval", c.interval)
		c.publish(func(s *Snapshot) { s.PollInterval = c.interval })
		if c.idle() {
			return
		}
		c.reschedule(ctx)
	case refetchCommand:
		if c.idle() {
			return
		}
		c.startFetch(ctx, "manual")
	}
}

// reschedule fetches immediately and restarts the ticker at the current interval.
func (c *Controller) reschedule(ctx context.Context) {
	c.stopTicker()
	c.startFetch(ctx, "reschedule")
	if c.interval > 0 {
		c.ticker = time.NewTicker(c.interval)
	}
}

func (c *Controller) invalidate(ctx context.Context, invs []events.Invalidation) {
	if len(invs) == 0 {
		return
	}
	c.epoch++
	var ids []string
	list := false
	for _, inv := range invs {
		if inv.Has(events.ScopeDetail) && inv.PullRequestID != "" {
			ids = append(ids, inv.PullRequestID)
		}
		list = list || inv.Has(events.ScopeList)
	}
	if len(ids) > 0 {
		c.details.Evict(ids...)
	}
	c.logger.Debugw("invalidated", "epoch", c.epoch, "pull_requests", ids)
	if !list || c.idle() {
		return
	}
	c.publish(func(s *Snapshot) { s.Stale = true })
	c.startFetch(ctx, "invalidation")
}

func (c *Controller) startFetch(ctx context.Context, reason string) {
	if c.idle() {
		return
	}
	if _, err := c.credentials.Token(); err != nil {
		c.logger.Warnw("skipping fetch without credential", "reason", reason, "error", err)
		c.publish(func(s *Snapshot) {
			s.Err = err
			s.Loading = len(c.inflight) > 0
		})
		c.credentials.OnUnauthenticated()
		return
	}

	c.seq++
	fetchCtx, cancel := context.WithTimeout(ctx, c.cycleTimeout)
	r := fetchResult{seq: c.seq, key: c.query.Key, epoch: c.epoch, cycleID: uuid.NewString()}
	c.inflight[r.seq] = cancel
	c.publish(func(s *Snapshot) { s.Loading = true })

	c.logger.Debugw("starting aggregation cycle", "cycle_id", r.cycleID, "reason", reason, "epoch", r.epoch)
	query := c.query
	go func() {
		r.result, r.err = c.aggregator.Aggregate(fetchCtx, query)
		select {
		case c.results <- r:
		case <-c.done:
		}
	}()
}

func (c *Controller) apply(r fetchResult) {
	if cancel, ok := c.inflight[r.seq]; ok {
		cancel()
		delete(c.inflight, r.seq)
	}
	loading := len(c.inflight) > 0
	log := c.logger.With("cycle_id", r.cycleID)

	if c.query == nil || r.key != c.query.Key {
		log.Debugw("dropping result for superseded selection")
		c.publish(func(s *Snapshot) { s.Loading = loading })
		return
	}
	if r.epoch < c.appliedEpoch {
		log.Debugw("dropping result older than the applied invalidation", "epoch", r.epoch, "applied_epoch", c.appliedEpoch)
		c.publish(func(s *Snapshot) { s.Loading = loading })
		return
	}
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			c.publish(func(s *Snapshot) { s.Loading = loading })
			return
		}
		log.Warnw("aggregation cycle failed", "error", r.err)
		c.publish(func(s *Snapshot) {
			s.Err = r.err
			s.Loading = loading
		})
		if errors.Is(r.err, domain.ErrUnauthenticated) {
			c.credentials.OnUnauthenticated()
		}
		return
	}

	c.appliedEpoch = r.epoch
	log.Infow("aggregation cycle complete", "pull_requests", len(r.result.PullRequests), "failures", len(r.result.Failures))
	c.snapshot.Store(&Snapshot{
		PullRequests: r.result.PullRequests,
		Failures:     r.result.Failures,
		Loading:      loading,
		Stale:        r.epoch < c.epoch,
		Viewer:       r.result.Viewer,
		FetchedAt:    time.Now(),
		Version:      r.cycleID,
		Key:          r.key,
		PollInterval: c.interval,
	})
}

// publish stores a modified copy of the current snapshot.
func (c *Controller) publish(modify func(s *Snapshot)) {
	next := *c.snapshot.Load()
	modify(&next)
	c.snapshot.Store(&next)
}

func (c *Controller) idle() bool {
	return c.query == nil || c.query.Empty()
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) cancelInflight() {
	for seq, cancel := range c.inflight {
		cancel()
		delete(c.inflight, seq)
	}
}

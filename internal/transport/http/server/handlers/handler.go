// Package handlers exposes the dashboard over HTTP with fiber.
package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/preferences"
	"github.com/naka-gawa/pr-dashboard/internal/refresh"
	"github.com/naka-gawa/pr-dashboard/internal/usecase"
	"go.uber.org/zap"
)

// Dashboard is the live pull request view.
type Dashboard interface {
	Snapshot() refresh.Snapshot
	Refetch()
	Detail(ctx context.Context, repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, error)
	SetRepositorySelection(ids []string) error
	SetPollInterval(interval time.Duration)
}

// Mutations are the pull request write operations.
type Mutations interface {
	Approve(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error)
	RequestChanges(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error)
	Comment(ctx context.Context, pullRequestID, body string) (*domain.MutationResult, error)
	Merge(ctx context.Context, pullRequestID string, opts usecase.MergeOptions) (*domain.MutationResult, error)
	Close(ctx context.Context, pullRequestID string) (*domain.MutationResult, error)
	Reopen(ctx context.Context, pullRequestID string) (*domain.MutationResult, error)
}

// Catalog lists repositories and the signed-in account.
type Catalog interface {
	FetchRepositories(ctx context.Context) (*domain.RepositoryCatalog, error)
	FetchAccount(ctx context.Context) (*domain.Account, error)
}

// PreferenceStore persists the user's dashboard choices.
type PreferenceStore interface {
	Load() (preferences.Preferences, error)
	Save(p preferences.Preferences) (preferences.Preferences, error)
	Floor() time.Duration
}

// Handler serves the HTTP API.
type Handler struct {
	log         *zap.SugaredLogger
	dashboard   Dashboard
	mutations   Mutations
	catalog     Catalog
	preferences PreferenceStore
	timeout     time.Duration
	// unauthenticated is signalled when upstream rejects the credential.
	unauthenticated func()
}

// Options configures a Handler. Timeout bounds each upstream call made on
// behalf of a request; zero means no bound. OnUnauthenticated may be nil.
type Options struct {
	Timeout           time.Duration
	OnUnauthenticated func()
}

// NewHandler constructs an HTTP handler with its service dependencies.
func NewHandler(log *zap.SugaredLogger, dashboard Dashboard, mutations Mutations, catalog Catalog, prefs PreferenceStore, opts Options) *Handler {
	unauthenticated := opts.OnUnauthenticated
	if unauthenticated == nil {
		unauthenticated = func() {}
	}
	return &Handler{
		log:             log,
		dashboard:       dashboard,
		mutations:       mutations,
		catalog:         catalog,
		preferences:     prefs,
		timeout:         opts.Timeout,
		unauthenticated: unauthenticated,
	}
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	v1 := app.Group("/api/v1")

	prs := v1.Group("/prs")
	prs.Get("/", h.GetPullRequests)
	prs.Post("/refresh", h.PostRefresh)
	prs.Get("/summary", h.GetSummary)
	prs.Get("/:owner/:repo/:number", h.GetPullRequestDetail)
	prs.Post("/:id/approve", h.PostApprove)
	prs.Post("/:id/request-changes", h.PostRequestChanges)
	prs.Post("/:id/comment", h.PostComment)
	prs.Post("/:id/merge", h.PostMerge)
	prs.Post("/:id/close", h.PostClose)
	prs.Post("/:id/reopen", h.PostReopen)

	v1.Get("/repos", h.GetRepositories)
	v1.Get("/user", h.GetUser)
	v1.Get("/preferences", h.GetPreferences)
	v1.Put("/preferences", h.PutPreferences)
}

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

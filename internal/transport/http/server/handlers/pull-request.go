package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/refresh"
	"github.com/naka-gawa/pr-dashboard/internal/usecase"
	"github.com/naka-gawa/pr-dashboard/internal/view"
)

// PullRequestsResponse is the filtered dashboard snapshot. Groups is set
// instead of PullRequests when grouping was requested.
type PullRequestsResponse struct {
	PullRequests   []domain.PullRequest   `json:"pull_requests,omitempty"`
	Groups         []view.RepositoryGroup `json:"groups,omitempty"`
	Total          int                    `json:"total"`
	Failures       []domain.RepoFailure   `json:"failures"`
	Loading        bool                   `json:"loading"`
	Stale          bool                   `json:"stale"`
	Error          *ErrorBody             `json:"error,omitempty"`
	Viewer         string                 `json:"viewer,omitempty"`
	FetchedAt      *time.Time             `json:"fetched_at,omitempty"`
	Version        string                 `json:"version,omitempty"`
	Key            string                 `json:"key"`
	PollIntervalMS int64                  `json:"poll_interval_ms"`
	Filter         view.Filter            `json:"filter"`
}

func filterFromQuery(c *fiber.Ctx) (view.Filter, error) {
	return view.ParseFilter(c.Query("drafts"), c.Query("review"), c.Query("ci"))
}

func newPullRequestsResponse(snap refresh.Snapshot, f view.Filter, group bool) PullRequestsResponse {
	prs := f.Apply(snap.PullRequests)
	resp := PullRequestsResponse{
		Total:          len(prs),
		Failures:       snap.Failures,
		Loading:        snap.Loading,
		Stale:          snap.Stale,
		Viewer:         snap.Viewer,
		Version:        snap.Version,
		Key:            snap.Key,
		PollIntervalMS: snap.PollInterval.Milliseconds(),
		Filter:         f,
	}
	if group {
		resp.Groups = view.GroupByRepository(prs)
	} else {
		resp.PullRequests = prs
	}
	if snap.Err != nil {
		_, code := classify(snap.Err)
		resp.Error = &ErrorBody{Code: code, Message: snap.Err.Error()}
	}
	if !snap.FetchedAt.IsZero() {
		fetchedAt := snap.FetchedAt
		resp.FetchedAt = &fetchedAt
	}
	if resp.Failures == nil {
		resp.Failures = []domain.RepoFailure{}
	}
	return resp
}

// GetPullRequests returns the current snapshot with the requested filters applied.
func (h *Handler) GetPullRequests(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	group := c.QueryBool("group", false)
	return c.Status(http.StatusOK).JSON(newPullRequestsResponse(h.dashboard.Snapshot(), f, group))
}

// PostRefresh requests an immediate refetch without waiting for it.
func (h *Handler) PostRefresh(c *fiber.Ctx) error {
	h.dashboard.Refetch()
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "refreshing"})
}

// GetSummary returns statistics over the filtered snapshot.
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	snap := h.dashboard.Snapshot()
	return c.Status(http.StatusOK).JSON(view.Summarize(f.Apply(snap.PullRequests), time.Now()))
}

// GetPullRequestDetail returns one pull request's detail view.
func (h *Handler) GetPullRequestDetail(c *fiber.Ctx) error {
	ref, err := domain.ParseRepositoryRef(c.Params("owner") + "/" + c.Params("repo"))
	if err != nil {
		return writeError(c, err)
	}
	number, err := strconv.Atoi(c.Params("number"))
	if err != nil || number <= 0 {
		return writeError(c, fmt.Errorf("%w: pull request number must be a positive integer", domain.ErrInvalidArgument))
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	detail, err := h.dashboard.Detail(ctx, ref, number)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(detail)
}

// pullRequestID copies the id route parameter out of the request buffer,
// which fasthttp reuses once the handler returns.
func pullRequestID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

type reviewBody struct {
	Body string `json:"body"`
}

func (h *Handler) mutation(c *fiber.Ctx, call func(id string, body reviewBody) (*domain.MutationResult, error)) error {
	var body reviewBody
	if err := parseOptionalBody(c, &body); err != nil {
		return writeError(c, err)
	}
	result, err := call(pullRequestID(c), body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// PostApprove approves a pull request.
func (h *Handler) PostApprove(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	return h.mutation(c, func(id string, body reviewBody) (*domain.MutationResult, error) {
		return h.mutations.Approve(ctx, id, body.Body)
	})
}

// PostRequestChanges requests changes on a pull request.
func (h *Handler) PostRequestChanges(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	return h.mutation(c, func(id string, body reviewBody) (*domain.MutationResult, error) {
		return h.mutations.RequestChanges(ctx, id, body.Body)
	})
}

// PostComment comments on a pull request.
func (h *Handler) PostComment(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	return h.mutation(c, func(id string, body reviewBody) (*domain.MutationResult, error) {
		return h.mutations.Comment(ctx, id, body.Body)
	})
}

// PostMerge merges a pull request.
func (h *Handler) PostMerge(c *fiber.Ctx) error {
	var opts usecase.MergeOptions
	if err := parseOptionalBody(c, &opts); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	result, err := h.mutations.Merge(ctx, pullRequestID(c), opts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

// PostClose closes a pull request.
func (h *Handler) PostClose(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	return h.mutation(c, func(id string, _ reviewBody) (*domain.MutationResult, error) {
		return h.mutations.Close(ctx, id)
	})
}

// PostReopen reopens a closed pull request.
func (h *Handler) PostReopen(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	return h.mutation(c, func(id string, _ reviewBody) (*domain.MutationResult, error) {
		return h.mutations.Reopen(ctx, id)
	})
}

package domain

import "time"

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateClosed PRState = "CLOSED"
	PRStateMerged PRState = "MERGED"
)

// CheckState is the aggregate CI state of a pull request's head commit.
type CheckState string

const (
	CheckStateSuccess  CheckState = "SUCCESS"
	CheckStateFailure  CheckState = "FAILURE"
	CheckStateError    CheckState = "ERROR"
	CheckStatePending  CheckState = "PENDING"
	CheckStateExpected CheckState = "EXPECTED"
)

// ReviewState is the state of a submitted review.
type ReviewState string

const (
	ReviewStateApproved         ReviewState = "APPROVED"
	ReviewStateChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewStateCommented        ReviewState = "COMMENTED"
	ReviewStateDismissed        ReviewState = "DISMISSED"
	ReviewStatePending          ReviewState = "PENDING"
)

// Actor is a GitHub user, bot or organization reference.
type Actor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repository is the denormalized repository a pull request belongs to.
type Repository struct {
	Name          string `json:"name"`
	NameWithOwner string `json:"name_with_owner"`
	Owner         Actor  `json:"owner"`
}

// Review is a submitted pull request review.
type Review struct {
	ID          string      `json:"id"`
	State       ReviewState `json:"state"`
	Author      Actor       `json:"author"`
	SubmittedAt *time.Time  `json:"submitted_at"`
}

// ReviewRequest is a pending reviewer. Teams carry only TeamName.
type ReviewRequest struct {
	Login     string `json:"login,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TeamName  string `json:"team_name,omitempty"`
}

// CheckContext is one check run or commit status reported against the head commit.
type CheckContext struct {
	Name        string `json:"name"`
	Status      string `json:"status,omitempty"`
	Conclusion  string `json:"conclusion,omitempty"`
	State       string `json:"state,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// StatusCheckRollup is the combined CI state across all checks.
type StatusCheckRollup struct {
	State    CheckState     `json:"state"`
	Contexts []CheckContext `json:"contexts"`
}

// Label is a pull request label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Comment is an issue comment on a pull request.
type Comment struct {
	ID          string    `json:"id"`
	Body        string    `json:"body"`
	Author      Actor     `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	IsMinimized bool      `json:"is_minimized"`
}

// Comments holds the comment count and, on detail fetches, the comments themselves.
type Comments struct {
	TotalCount int       `json:"total_count"`
	Nodes      []Comment `json:"nodes"`
}

// PullRequest is the unit of aggregation. A new value is materialized on
// every aggregation cycle; collections of them are treated as immutable.
// Slice fields are never nil after normalization.
type PullRequest struct {
	ID                string            `json:"id"`
	Number            int               `json:"number"`
	Title             string            `json:"title"`
	State             PRState           `json:"state"`
	URL               string            `json:"url"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	IsDraft           bool              `json:"is_draft"`
	Author            Actor             `json:"author"`
	Repository        Repository        `json:"repository"`
	Reviews           []Review          `json:"reviews"`
	ReviewRequests    []ReviewRequest   `json:"review_requests"`
	StatusCheckRollup StatusCheckRollup `json:"status_check_rollup"`
	Labels            []Label           `json:"labels"`
	Comments          Comments          `json:"comments"`
}

// RepoFailure records a repository whose contribution is missing from a cycle.
type RepoFailure struct {
	Repository string `json:"repository"`
	Message    string `json:"message"`
}

// AggregationResult is the output of one aggregation cycle.
type AggregationResult struct {
	Viewer       string        `json:"viewer"`
	PullRequests []PullRequest `json:"pull_requests"`
	Failures     []RepoFailure `json:"failures"`
}

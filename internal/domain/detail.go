package domain

import "time"

// Commit is a commit listed on the detail view.
type Commit struct {
	OID             string    `json:"oid"`
	MessageHeadline string    `json:"message_headline"`
	AuthorName      string    `json:"author_name"`
	AuthorLogin     string    `json:"author_login,omitempty"`
	AuthoredAt      time.Time `json:"authored_at"`
	URL             string    `json:"url"`
}

// ChangedFile is a file touched by the pull request.
type ChangedFile struct {
	Path       string `json:"path"`
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
	ChangeType string `json:"change_type"`
}

// PullRequestDetail is the full single-PR view. The embedded PullRequest has
// Comments.Nodes populated.
type PullRequestDetail struct {
	PullRequest
	Body         string        `json:"body"`
	Additions    int           `json:"additions"`
	Deletions    int           `json:"deletions"`
	ChangedFiles int           `json:"changed_files"`
	Mergeable    string        `json:"mergeable"`
	Merged       bool          `json:"merged"`
	Closed       bool          `json:"closed"`
	MergedAt     *time.Time    `json:"merged_at"`
	ClosedAt     *time.Time    `json:"closed_at"`
	HeadRefName  string        `json:"head_ref_name"`
	BaseRefName  string        `json:"base_ref_name"`
	Commits      []Commit      `json:"commits"`
	Files        []ChangedFile `json:"files"`
}

// RepositoryInfo is a repository the viewer can select.
type RepositoryInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NameWithOwner string `json:"name_with_owner"`
	Owner         Actor  `json:"owner"`
	IsPrivate     bool   `json:"is_private"`
	URL           string `json:"url"`
}

// Organization groups the repositories of one organization.
type Organization struct {
	Login        string           `json:"login"`
	AvatarURL    string           `json:"avatar_url"`
	Repositories []RepositoryInfo `json:"repositories"`
}

// RepositoryCatalog lists every repository the viewer can aggregate.
type RepositoryCatalog struct {
	ViewerLogin   string           `json:"viewer_login"`
	Personal      []RepositoryInfo `json:"personal_repos"`
	Organizations []Organization   `json:"organizations"`
	All           []RepositoryInfo `json:"all_repos"`
}

// RateLimit is the remaining API budget of one upstream resource.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Account is the signed-in user's profile.
type Account struct {
	Login        string     `json:"login"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatar_url"`
	Email        string     `json:"email,omitempty"`
	CoreLimit    *RateLimit `json:"core_rate_limit,omitempty"`
	GraphQLLimit *RateLimit `json:"graphql_rate_limit,omitempty"`
}

// MutationResult carries the fields upstream returned for a write operation.
type MutationResult struct {
	Action        string     `json:"action"`
	PullRequestID string     `json:"pull_request_id"`
	ReviewID      string     `json:"review_id,omitempty"`
	ReviewState   string     `json:"review_state,omitempty"`
	CommentID     string     `json:"comment_id,omitempty"`
	State         PRState    `json:"state,omitempty"`
	Merged        bool       `json:"merged"`
	Closed        bool       `json:"closed"`
	MergedAt      *time.Time `json:"merged_at,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

package gateway

import "github.com/shurcooL/githubv4"

// The structs in this file mirror the GraphQL selection sets. A field's
// GraphQL name comes from its graphql tag or, failing that, its lowerCamelCase
// Go name; "avatarUrl"-style names need explicit tags.

// ActorNode is a user, bot or organization reference.
type ActorNode struct {
	Login     string
	AvatarURL string `graphql:"avatarUrl"`
}

// RepositoryNode is the repository selection embedded in each pull request.
type RepositoryNode struct {
	Name          string
	NameWithOwner string
	Owner         ActorNode
}

// ReviewNode is one submitted review.
type ReviewNode struct {
	ID          string
	State       githubv4.PullRequestReviewState
	Author      *ActorNode
	SubmittedAt *githubv4.DateTime
}

// ReviewRequestNode is one pending reviewer, either a user or a team.
type ReviewRequestNode struct {
	RequestedReviewer *struct {
		User ActorNode `graphql:"... on User"`
		Team struct {
			Name string
		} `graphql:"... on Team"`
	}
}

// CheckContextNode is a check run or a commit status context.
type CheckContextNode struct {
	CheckRun struct {
		Name       string
		Conclusion string
		Status     string
		DetailsURL string `graphql:"detailsUrl"`
	} `graphql:"... on CheckRun"`
	StatusContext struct {
		State       string
		Context     string
		Description string
		TargetURL   string `graphql:"targetUrl"`
	} `graphql:"... on StatusContext"`
}

// StatusCheckRollupNode is the aggregate CI state.
type StatusCheckRollupNode struct {
	State    githubv4.StatusState
	Contexts *struct {
		Nodes []*CheckContextNode
	} `graphql:"contexts(first: 20)"`
}

// LabelNode is one label.
type LabelNode struct {
	ID    string
	Name  string
	Color string
}

// PullRequestFields is the field selection shared by every pull request
// query. It is embedded so list and detail selections stay identical.
// Optional sub-objects are pointers: nil means upstream omitted them.
type PullRequestFields struct {
	ID                string
	Number            int
	Title             string
	State             githubv4.PullRequestState
	URL               string
	CreatedAt         githubv4.DateTime
	UpdatedAt         githubv4.DateTime
	IsDraft           bool
	Author            *ActorNode
	Repository        *RepositoryNode
	Reviews           *struct{ Nodes []*ReviewNode }        `graphql:"reviews(last: 20)"`
	ReviewRequests    *struct{ Nodes []*ReviewRequestNode } `graphql:"reviewRequests(first: 10)"`
	StatusCheckRollup *StatusCheckRollupNode
	Labels            *struct{ Nodes []*LabelNode } `graphql:"labels(first: 10)"`
}

// PullRequestNode is one pull request in the aggregated list.
type PullRequestNode struct {
	PullRequestFields
	Comments *struct {
		TotalCount int
	}
}

// RepositoryPullRequests is what each repository alias resolves to.
type RepositoryPullRequests struct {
	PullRequests struct {
		Nodes    []*PullRequestNode
		PageInfo struct {
			HasNextPage bool
			EndCursor   string
		}
	} `graphql:"pullRequests(states: OPEN, first: 100, orderBy: {field: UPDATED_AT, direction: DESC})"`
}

// CommentNode is one issue comment.
type CommentNode struct {
	ID          string
	Body        string
	CreatedAt   githubv4.DateTime
	Author      *ActorNode
	IsMinimized bool
}

// CommitNode is one commit on the pull request.
type CommitNode struct {
	Commit struct {
		OID             string `graphql:"oid"`
		MessageHeadline string
		URL             string
		Author          *struct {
			Name string
			Date githubv4.DateTime
			User *ActorNode
		}
	}
}

// FileNode is one changed file.
type FileNode struct {
	Path       string
	Additions  int
	Deletions  int
	ChangeType string
}

// PullRequestDetailNode is the full single pull request selection.
type PullRequestDetailNode struct {
	PullRequestFields
	Body         string
	Additions    int
	Deletions    int
	ChangedFiles int
	Mergeable    githubv4.MergeableState
	Merged       bool
	Closed       bool
	MergedAt     *githubv4.DateTime
	ClosedAt     *githubv4.DateTime
	HeadRefName  string
	BaseRefName  string
	Commits      *struct{ Nodes []*CommitNode } `graphql:"commits(first: 10)"`
	Files        *struct{ Nodes []*FileNode }   `graphql:"files(first: 50)"`
	Comments     *struct {
		TotalCount int
		Nodes      []*CommentNode
	} `graphql:"comments(first: 100)"`
}

type repositoryInfoNode struct {
	ID            string
	Name          string
	NameWithOwner string
	Owner         ActorNode
	IsPrivate     bool
	URL           string
}

type viewerNode struct {
	Login string
}

package usecase

import (
	"sort"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"github.com/shurcooL/githubv4"
)

// Normalize flattens an aliased response into pull request records, walking
// refs in order and looking each one up by its alias. Repositories missing
// from the response are returned in skipped. The result is de-duplicated by
// ID and sorted by recency; every record is freshly allocated.
func Normalize(resp *gateway.AliasedResponse, refs []domain.RepositoryRef) (records []domain.PullRequest, skipped []domain.RepositoryRef) {
	records = make([]domain.PullRequest, 0)
	if resp == nil {
		return records, append(skipped, refs...)
	}
	for _, ref := range refs {
		repo, ok := resp.Repositories[gateway.Alias(ref.Owner, ref.Name)]
		if !ok || repo == nil {
			skipped = append(skipped, ref)
			continue
		}
		for _, node := range repo.PullRequests.Nodes {
			if node == nil {
				continue
			}
			records = append(records, toPullRequest(node, ref))
		}
	}
	records = Dedup(records)
	SortByRecency(records)
	return records, skipped
}

// Dedup drops every record whose ID was already seen, keeping the first
// occurrence and the original order.
func Dedup(records []domain.PullRequest) []domain.PullRequest {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.PullRequest, 0, len(records))
	for _, pr := range records {
		if _, ok := seen[pr.ID]; ok {
			continue
		}
		seen[pr.ID] = struct{}{}
		out = append(out, pr)
	}
	return out
}

// SortByRecency sorts records by UpdatedAt, most recent first. Ties keep
// their input order.
func SortByRecency(records []domain.PullRequest) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}

func toPullRequest(node *gateway.PullRequestNode, ref domain.RepositoryRef) domain.PullRequest {
	pr := fromFields(&node.PullRequestFields, ref)
	if node.Comments != nil {
		pr.Comments.TotalCount = node.Comments.TotalCount
	}
	return pr
}

// fromFields converts the shared selection, substituting defaults for every
// sub-object upstream omitted.
func fromFields(f *gateway.PullRequestFields, ref domain.RepositoryRef) domain.PullRequest {
	pr := domain.PullRequest{
		ID:             f.ID,
		Number:         f.Number,
		Title:          f.Title,
		State:          domain.PRState(f.State),
		URL:            f.URL,
		CreatedAt:      f.CreatedAt.Time,
		UpdatedAt:      f.UpdatedAt.Time,
		IsDraft:        f.IsDraft,
		Author:         toActor(f.Author),
		Reviews:        []domain.Review{},
		ReviewRequests: []domain.ReviewRequest{},
		Labels:         []domain.Label{},
		Comments:       domain.Comments{Nodes: []domain.Comment{}},
		StatusCheckRollup: domain.StatusCheckRollup{
			State:    domain.CheckStatePending,
			Contexts: []domain.CheckContext{},
		},
	}

	if f.Repository != nil {
		pr.Repository = domain.Repository{
			Name:          f.Repository.Name,
			NameWithOwner: f.Repository.NameWithOwner,
			Owner:         toActor(&f.Repository.Owner),
		}
	} else {
		pr.Repository = domain.Repository{
			Name:          ref.Name,
			NameWithOwner: ref.String(),
			Owner:         domain.Actor{Login: ref.Owner},
		}
	}

	if f.Reviews != nil {
		for _, r := range f.Reviews.Nodes {
			if r == nil {
				continue
			}
			pr.Reviews = append(pr.Reviews, domain.Review{
				ID:          r.ID,
				State:       domain.ReviewState(r.State),
				Author:      toActor(r.Author),
				SubmittedAt: toTime(r.SubmittedAt),
			})
		}
	}

	if f.ReviewRequests != nil {
		for _, r := range f.ReviewRequests.Nodes {
			if r == nil || r.RequestedReviewer == nil {
				continue
			}
			pr.ReviewRequests = append(pr.ReviewRequests, domain.ReviewRequest{
				Login:     r.RequestedReviewer.User.Login,
				AvatarURL: r.RequestedReviewer.User.AvatarURL,
				TeamName:  r.RequestedReviewer.Team.Name,
			})
		}
	}

	if f.StatusCheckRollup != nil {
		if f.StatusCheckRollup.State != "" {
			pr.StatusCheckRollup.State = domain.CheckState(f.StatusCheckRollup.State)
		}
		if f.StatusCheckRollup.Contexts != nil {
			for _, c := range f.StatusCheckRollup.Contexts.Nodes {
				if c == nil {
					continue
				}
				pr.StatusCheckRollup.Contexts = append(pr.StatusCheckRollup.Contexts, toCheckContext(c))
			}
		}
	}

	if f.Labels != nil {
		for _, l := range f.Labels.Nodes {
			if l == nil {
				continue
			}
			pr.Labels = append(pr.Labels, domain.Label{ID: l.ID, Name: l.Name, Color: l.Color})
		}
	}
	return pr
}

func toCheckContext(c *gateway.CheckContextNode) domain.CheckContext {
	if c.CheckRun.Name != "" {
		return domain.CheckContext{
			Name:       c.CheckRun.Name,
			Status:     c.CheckRun.Status,
			Conclusion: c.CheckRun.Conclusion,
			URL:        c.CheckRun.DetailsURL,
		}
	}
	return domain.CheckContext{
		Name:        c.StatusContext.Context,
		State:       c.StatusContext.State,
		Description: c.StatusContext.Description,
		URL:         c.StatusContext.TargetURL,
	}
}

// toActor returns the zero Actor for deleted ("ghost") accounts.
func toActor(a *gateway.ActorNode) domain.Actor {
	if a == nil {
		return domain.Actor{}
	}
	return domain.Actor{Login: a.Login, AvatarURL: a.AvatarURL}
}

func toTime(dt *githubv4.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := dt.Time
	return &t
}

// NormalizeDetail converts a detail selection the same way Normalize converts
// list entries, plus the detail-only fields.
func NormalizeDetail(node *gateway.PullRequestDetailNode, ref domain.RepositoryRef) *domain.PullRequestDetail {
	d := &domain.PullRequestDetail{
		PullRequest:  fromFields(&node.PullRequestFields, ref),
		Body:         node.Body,
		Additions:    node.Additions,
		Deletions:    node.Deletions,
		ChangedFiles: node.ChangedFiles,
		Mergeable:    string(node.Mergeable),
		Merged:       node.Merged,
		Closed:       node.Closed,
		MergedAt:     toTime(node.MergedAt),
		ClosedAt:     toTime(node.ClosedAt),
		HeadRefName:  node.HeadRefName,
		BaseRefName:  node.BaseRefName,
		Commits:      []domain.Commit{},
		Files:        []domain.ChangedFile{},
	}
	if node.Comments != nil {
		d.Comments.TotalCount = node.Comments.TotalCount
		for _, c := range node.Comments.Nodes {
			if c == nil {
				continue
			}
			d.Comments.Nodes = append(d.Comments.Nodes, domain.Comment{
				ID:          c.ID,
				Body:        c.Body,
				Author:      toActor(c.Author),
				CreatedAt:   c.CreatedAt.Time,
				IsMinimized: c.IsMinimized,
			})
		}
	}
	if node.Commits != nil {
		for _, c := range node.Commits.Nodes {
			if c == nil {
				continue
			}
			commit := domain.Commit{
				OID:             c.Commit.OID,
				MessageHeadline: c.Commit.MessageHeadline,
				URL:             c.Commit.URL,
			}
			if a := c.Commit.Author; a != nil {
				commit.AuthorName = a.Name
				commit.AuthoredAt = a.Date.Time
				if a.User != nil {
					commit.AuthorLogin = a.User.Login
				}
			}
			d.Commits = append(d.Commits, commit)
		}
	}
	if node.Files != nil {
		for _, f := range node.Files.Nodes {
			if f == nil {
				continue
			}
			d.Files = append(d.Files, domain.ChangedFile{
				Path:       f.Path,
				Additions:  f.Additions,
				Deletions:  f.Deletions,
				ChangeType: f.ChangeType,
			})
		}
	}
	return d
}

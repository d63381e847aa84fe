package gateway

import (
	"context"
	"fmt"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

type repositoryCatalogQuery struct {
	Viewer struct {
		Login        string
		Repositories struct {
			Nodes []*repositoryInfoNode
		} `graphql:"repositories(first: 100, orderBy: {field: UPDATED_AT, direction: DESC}, affiliations: [OWNER, COLLABORATOR, ORGANIZATION_MEMBER])"`
		Organizations struct {
			Nodes []*struct {
				Login        string
				AvatarURL    string `graphql:"avatarUrl"`
				Repositories struct {
					Nodes []*repositoryInfoNode
				} `graphql:"repositories(first: 100, orderBy: {field: UPDATED_AT, direction: DESC})"`
			}
		} `graphql:"organizations(first: 50)"`
	}
}

// FetchRepositories lists the repositories the viewer can select: their own
// and collaborator repositories, then each organization's. All is the union
// de-duplicated by nameWithOwner, keeping the first occurrence.
func (g *GitHubGateway) FetchRepositories(ctx context.Context) (*domain.RepositoryCatalog, error) {
	var q repositoryCatalogQuery
	partial, err := g.query(ctx, &q, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repositories: %w", err)
	}
	if len(partial) > 0 {
		g.logger.Warnw("repository catalog returned partial data", "errors", len(partial))
	}

	catalog := &domain.RepositoryCatalog{
		ViewerLogin:   q.Viewer.Login,
		Personal:      repositoryInfos(q.Viewer.Repositories.Nodes),
		Organizations: make([]domain.Organization, 0, len(q.Viewer.Organizations.Nodes)),
	}
	for _, org := range q.Viewer.Organizations.Nodes {
		if org == nil {
			continue
		}
		catalog.Organizations = append(catalog.Organizations, domain.Organization{
			Login:        org.Login,
			AvatarURL:    org.AvatarURL,
			Repositories: repositoryInfos(org.Repositories.Nodes),
		})
	}

	seen := make(map[string]struct{})
	catalog.All = make([]domain.RepositoryInfo, 0, len(catalog.Personal))
	add := func(repos []domain.RepositoryInfo) {
		for _, r := range repos {
			if _, ok := seen[r.NameWithOwner]; ok {
				continue
			}
			seen[r.NameWithOwner] = struct{}{}
			catalog.All = append(catalog.All, r)
		}
	}
	add(catalog.Personal)
	for _, org := range catalog.Organizations {
		add(org.Repositories)
	}
	return catalog, nil
}

func repositoryInfos(nodes []*repositoryInfoNode) []domain.RepositoryInfo {
	out := make([]domain.RepositoryInfo, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, domain.RepositoryInfo{
			ID:            n.ID,
			Name:          n.Name,
			NameWithOwner: n.NameWithOwner,
			Owner:         domain.Actor{Login: n.Owner.Login, AvatarURL: n.Owner.AvatarURL},
			IsPrivate:     n.IsPrivate,
			URL:           n.URL,
		})
	}
	return out
}

package gateway

import (
	"context"
	"fmt"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"golang.org/x/sync/errgroup"
)

// FetchAccount fetches the viewer's profile, primary e-mail and rate limit
// status over REST. The e-mail needs the user:email scope and is left empty
// when it cannot be read.
func (g *GitHubGateway) FetchAccount(ctx context.Context) (*domain.Account, error) {
	var (
		user   *github.User
		email  string
		limits *github.RateLimits
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		u, _, err := g.restClient.Users.Get(egCtx, "")
		if err != nil {
			return fmt.Errorf("failed to fetch user with REST API: %w", classifyREST(err))
		}
		user = u
		return nil
	})
	eg.Go(func() error {
		emails, _, err := g.restClient.Users.ListEmails(egCtx, &github.ListOptions{PerPage: 100})
		if err != nil {
			g.logger.Debugw("could not list e-mails", "error", err)
			return nil
		}
		for _, e := range emails {
			if e.GetPrimary() {
				email = e.GetEmail()
				break
			}
		}
		return nil
	})
	eg.Go(func() error {
		l, _, err := g.restClient.RateLimit.Get(egCtx)
		if err != nil {
			g.logger.Debugw("could not read rate limits", "error", err)
			return nil
		}
		limits = l
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	account := &domain.Account{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
		Email:     email,
	}
	if email == "" {
		account.Email = user.GetEmail()
	}
	if limits != nil {
		account.CoreLimit = rateLimit(limits.Core)
		account.GraphQLLimit = rateLimit(limits.GraphQL)
	}
	return account, nil
}

func rateLimit(r *github.Rate) *domain.RateLimit {
	if r == nil {
		return nil
	}
	return &domain.RateLimit{Limit: r.Limit, Remaining: r.Remaining, ResetAt: r.Reset.Time}
}

// Package auth supplies the bearer credential used for every GitHub call.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Options selects how the credential is obtained. With ClientID, ClientSecret
// and RefreshToken set, access tokens are refreshed against GitHub's OAuth
// endpoint; otherwise AccessToken is used as is.
type Options struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Provider is an oauth2.TokenSource that reports failures as
// domain.ErrUnauthenticated and fans the unauthenticated signal out to
// registered handlers.
type Provider struct {
	source oauth2.TokenSource
	logger *zap.SugaredLogger

	mu       sync.Mutex
	handlers []func()
}

// NewProvider creates a Provider from opts. A Provider without any
// credential is valid; every Token call then fails as unauthenticated.
func NewProvider(ctx context.Context, opts Options, logger *zap.SugaredLogger) *Provider {
	p := &Provider{logger: logger}
	switch {
	case opts.RefreshToken != "" && opts.ClientID != "" && opts.ClientSecret != "":
		cfg := &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     github.Endpoint,
		}
		p.source = cfg.TokenSource(ctx, &oauth2.Token{AccessToken: opts.AccessToken, RefreshToken: opts.RefreshToken})
		logger.Debugw("using refreshing GitHub credential")
	case opts.AccessToken != "":
		p.source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})
	default:
		logger.Warnw("no GitHub credential configured")
	}
	return p
}

// Token returns the current credential.
func (p *Provider) Token() (*oauth2.Token, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: no GitHub credential configured", domain.ErrUnauthenticated)
	}
	tok, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("%w: GitHub credential is expired", domain.ErrUnauthenticated)
	}
	return tok, nil
}

// HandleUnauthenticated registers fn to run whenever OnUnauthenticated is signalled.
func (p *Provider) HandleUnauthenticated(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// OnUnauthenticated signals that the credential is missing or was rejected
// and re-authentication is required.
func (p *Provider) OnUnauthenticated() {
	p.mu.Lock()
	handlers := append([]func(){}, p.handlers...)
	p.mu.Unlock()

	p.logger.Warnw("GitHub credential rejected; re-authentication required")
	for _, fn := range handlers {
		fn()
	}
}

package usecase

import (
	"context"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"github.com/naka-gawa/pr-dashboard/internal/gateway"
	"go.uber.org/zap"
)

// DetailService loads the full view of a single pull request.
type DetailService struct {
	fetcher gateway.DetailFetcher
	logger  *zap.SugaredLogger
}

// NewDetailService creates a new DetailService instance.
func NewDetailService(fetcher gateway.DetailFetcher, logger *zap.SugaredLogger) *DetailService {
	return &DetailService{fetcher: fetcher, logger: logger}
}

// Get fetches and normalizes one pull request.
func (s *DetailService) Get(ctx context.Context, repo domain.RepositoryRef, number int) (*domain.PullRequestDetail, error) {
	node, err := s.fetcher.FetchPullRequestDetail(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("fetched pull request detail", "repository", repo.String(), "number", number)
	return NormalizeDetail(node, repo), nil
}

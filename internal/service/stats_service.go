package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const statsCacheKey = "dashboard:stats:all"

// StatsService serves dashboard aggregates. The staff-wide view is cached in
// Redis for a short TTL; USER-scoped totals always hit the database.
type StatsService struct {
	stats    repository.StatsRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs the service. cache may be nil.
func NewStatsService(stats repository.StatsRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	return &StatsService{stats: stats, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// DashboardStats returns role-scoped ticket totals. Plain users only see
// counts over their own tickets.
func (s *StatsService) DashboardStats(ctx context.Context, actor *domain.User) (repository.TicketTotals, error) {
	if !actor.Role.IsStaff() {
		id := actor.ID
		totals, err := s.stats.TicketTotals(ctx, &id)
		if err != nil {
			return repository.TicketTotals{}, apperrors.MapError(err)
		}
		return totals, nil
	}

	if cached, ok := s.readCache(ctx); ok {
		return cached, nil
	}
	totals, err := s.stats.TicketTotals(ctx, nil)
	if err != nil {
		return repository.TicketTotals{}, apperrors.MapError(err)
	}
	s.writeCache(ctx, totals)
	return totals, nil
}

func (s *StatsService) readCache(ctx context.Context) (repository.TicketTotals, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return repository.TicketTotals{}, false
	}
	raw, err := s.cache.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return repository.TicketTotals{}, false
	}
	var totals repository.TicketTotals
	if err := json.Unmarshal(raw, &totals); err != nil {
		return repository.TicketTotals{}, false
	}
	return totals, true
}

func (s *StatsService) writeCache(ctx context.Context, totals repository.TicketTotals) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(totals)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

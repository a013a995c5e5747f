package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketTotals aggregates dashboard counters. AvgResolutionSeconds covers
// tickets with a closed_at stamp.
type TicketTotals struct {
	Total                int64   `json:"total"`
	Open                 int64   `json:"open"`
	InProgress           int64   `json:"inProgress"`
	Resolved             int64   `json:"resolved"`
	AvgResolutionSeconds float64 `json:"avgResolutionSeconds"`
}

// StatsRepository serves aggregate queries for the dashboard.
type StatsRepository interface {
	TicketTotals(ctx context.Context, createdByID *string) (TicketTotals, error)
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) TicketTotals(ctx context.Context, createdByID *string) (TicketTotals, error) {
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='OPEN'),
               COUNT(*) FILTER (WHERE status='IN_PROGRESS'),
               COUNT(*) FILTER (WHERE status IN ('RESOLVED','CLOSED')),
               COALESCE(EXTRACT(EPOCH FROM AVG(closed_at - created_at) FILTER (WHERE closed_at IS NOT NULL)), 0)
        FROM tickets`
	args := []any{}
	if createdByID != nil {
		query += ` WHERE created_by_id=$1`
		args = append(args, *createdByID)
	}

	var totals TicketTotals
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&totals.Total,
		&totals.Open,
		&totals.InProgress,
		&totals.Resolved,
		&totals.AvgResolutionSeconds,
	); err != nil {
		return TicketTotals{}, err
	}
	return totals, nil
}

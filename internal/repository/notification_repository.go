package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationRepository handles persistence for user notifications. Rows are
// only ever mutated to flip the read flag, and only by their target user.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

// CreateBatch writes all rows in a single batched round trip.
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	const query = `
        INSERT INTO notifications (user_id, type, title, message, related_id, data)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(query, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.Data)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, n := range notifications {
		if err := results.QueryRow().Scan(&n.ID, &n.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, type, title, message, related_id, data, read, read_at, created_at
        FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND read=FALSE`
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.RelatedID,
			&n.Data,
			&n.Read,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkRead flips the read flag. The user_id guard keeps a notification
// mutable only by its target user.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const query = `
        UPDATE notifications SET read=TRUE, read_at=COALESCE(read_at, NOW())
        WHERE id=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	const query = `
        UPDATE notifications SET read=TRUE, read_at=NOW()
        WHERE user_id=$1 AND read=FALSE`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND read=FALSE`, userID,
	).Scan(&count)
	return count, err
}

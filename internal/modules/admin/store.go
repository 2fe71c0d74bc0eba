// README: Audit store backed by PostgreSQL; append-only moderation log.
package admin

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"unipool/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, a *ModerationAction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO moderation_actions (
			id, entity_type, entity_id, actor_id, action, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(a.ID),
		a.EntityType,
		string(a.EntityID),
		string(a.ActorID),
		a.Action,
		a.Reason,
		a.CreatedAt,
	)
	return err
}

func (s *PGStore) ListByEntity(ctx context.Context, entityType string, entityID types.ID) ([]*ModerationAction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, entity_type, entity_id, actor_id, action, reason, created_at
		FROM moderation_actions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at`,
		entityType, string(entityID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ModerationAction
	for rows.Next() {
		var a ModerationAction
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.ActorID, &a.Action, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

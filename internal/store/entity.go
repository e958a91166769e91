package store

import (
	"context"

	"civium.app/pipeline/common/id"
	"civium.app/pipeline/internal/model"
)

type entityStore struct {
	db DBTX
}

// CreateGenerated inserts the entity row and its objective link together so
// a re-run of the coverage analyzer immediately sees the new support.
func (s *entityStore) CreateGenerated(ctx context.Context, objectiveID int64, entityType model.EntityType, title, summary, description string) (int64, error) {
	entityID := id.New()

	if _, err := s.db.Exec(ctx, `
		INSERT INTO generated_entities (id, entity_type, title, summary, description)
		VALUES ($1, $2, $3, $4, $5)`,
		entityID, string(entityType), title, summary, description); err != nil {
		return 0, err
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO entity_links (objective_id, entity_type, entity_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		objectiveID, string(entityType), entityID); err != nil {
		return 0, err
	}

	return entityID, nil
}

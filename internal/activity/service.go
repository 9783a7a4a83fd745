// Package activity appends immutable transition records for orders, payouts and brokers.
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// Recorder appends activity entries inside a caller-owned transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ActivityLog, error)
}

// Service defines operations over the activity log.
type Service interface {
	Recorder
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.ActivityLog, error)
}

type service struct {
	repo Repository
}

// Entry captures the immutable data an activity record requires.
type Entry struct {
	Action     enums.ActivityAction
	EntityType string
	EntityID   uuid.UUID
	BrokerID   *uuid.UUID
	ActorID    string
	Metadata   map[string]any
}

// NewService wires an activity service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.ActivityLog, error) {
	if !entry.Action.IsValid() {
		return nil, fmt.Errorf("invalid activity action %q", entry.Action)
	}
	if entry.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if entry.EntityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}

	var metadata json.RawMessage
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal activity metadata: %w", err)
		}
		metadata = raw
	}

	row := &models.ActivityLog{
		ID:         uuid.New(),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		BrokerID:   entry.BrokerID,
		Metadata:   metadata,
	}
	if entry.ActorID != "" {
		actor := entry.ActorID
		row.ActorID = &actor
	}

	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.ActivityLog, error) {
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID)
}

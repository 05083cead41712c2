package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oneoftools/internal/models"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// EventStore persists activities into the tracked and unmonitored logs
type EventStore struct {
	db *gorm.DB
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// EventFilter narrows a tracked log read
type EventFilter struct {
	Types []models.NFTEventType
	// Before only returns events strictly older than this unix timestamp when non-zero
	Before int64
	Limit  int
}

var upsertBySignature = clause.OnConflict{
	Columns:   []clause.Column{{Name: "signature"}},
	UpdateAll: true,
}

// AppendTracked upserts an activity into the tracked log of slug. Must be called inside a transaction.
func (s *EventStore) AppendTracked(tx *gorm.DB, slug string, activity *models.NFTActivity) error {
	event := models.NFTEvent{NFTActivity: *activity, CollectionSlug: slug}
	if err := tx.Clauses(upsertBySignature).Create(&event).Error; err != nil {
		return fmt.Errorf("append tracked event %s: %w", activity.Signature, err)
	}
	return nil
}

// HasTrackedEvent reports whether signature is already in the tracked log
func (s *EventStore) HasTrackedEvent(tx *gorm.DB, signature string) (bool, error) {
	var count int64
	if err := tx.Model(&models.NFTEvent{}).Where("signature = ?", signature).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendUntracked upserts an activity for a mint no collection claims
func (s *EventStore) AppendUntracked(ctx context.Context, activity *models.NFTActivity) error {
	event := models.UnmonitoredNFTEvent{NFTActivity: *activity}
	if err := s.db.WithContext(ctx).Clauses(upsertBySignature).Create(&event).Error; err != nil {
		return fmt.Errorf("append unmonitored event %s: %w", activity.Signature, err)
	}
	return nil
}

// MigrateUntrackedEventsToTracked moves every unmonitored event of mint into the tracked log of
// the collection that owns it. Copy and delete happen in one transaction.
func (s *EventStore) MigrateUntrackedEventsToTracked(ctx context.Context, mint string) (int, error) {
	moved := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CollectionNFT
		if err := tx.Where("mint = ?", mint).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMintNotTracked
			}
			return err
		}

		var pending []models.UnmonitoredNFTEvent
		if err := tx.Where("mint = ?", mint).Order("block_time asc").Find(&pending).Error; err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		signatures := make([]string, 0, len(pending))
		for i := range pending {
			if err := s.AppendTracked(tx, entry.CollectionSlug, &pending[i].NFTActivity); err != nil {
				return err
			}
			signatures = append(signatures, pending[i].Signature)
		}
		if err := tx.Where("signature IN ?", signatures).Delete(&models.UnmonitoredNFTEvent{}).Error; err != nil {
			return err
		}
		moved = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if moved > 0 {
		logrus.WithFields(logrus.Fields{"mint": mint, "events": moved}).Info("Migrated unmonitored events to tracked log")
	}
	return moved, nil
}

// ListEvents returns the tracked log of slug, newest first
func (s *EventStore) ListEvents(ctx context.Context, slug string, filter EventFilter) ([]models.NFTEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}

	query := s.db.WithContext(ctx).Where("collection_slug = ?", slug)
	if len(filter.Types) > 0 {
		query = query.Where("event_type IN ?", filter.Types)
	}
	if filter.Before > 0 {
		query = query.Where("block_time < ?", filter.Before)
	}

	var events []models.NFTEvent
	if err := query.Order("block_time desc").Order("signature asc").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListUntracked returns the unmonitored log of a mint
func (s *EventStore) ListUntracked(ctx context.Context, mint string) ([]models.UnmonitoredNFTEvent, error) {
	var events []models.UnmonitoredNFTEvent
	if err := s.db.WithContext(ctx).Where("mint = ?", mint).Order("block_time asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

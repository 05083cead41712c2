package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oneoftools/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{3,64}$`)

// lockCollection touches the collection row so concurrent transactions on the same
// collection queue behind this one, then loads it
func lockCollection(tx *gorm.DB, slug string) (*models.Collection, error) {
	result := tx.Model(&models.Collection{}).Where("slug = ?", slug).Update("updated_at", time.Now())
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, slug)
	}

	var collection models.Collection
	if err := tx.Where("slug = ?", slug).First(&collection).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// CollectionSubmission is a request to add a boutique collection
type CollectionSubmission struct {
	Slug                 string   `json:"slug" binding:"required"`
	Name                 string   `json:"name" binding:"required"`
	Description          string   `json:"description"`
	CollectionAddress    string   `json:"collection_address"`
	FirstVerifiedCreator string   `json:"first_verified_creator"`
	SubmittedBy          string   `json:"submitted_by"`
	MintAddresses        []string `json:"mint_addresses"`
}

// Validate checks the slug format, that a filter key is present and that every address is a public key
func (s *CollectionSubmission) Validate() error {
	s.Slug = strings.TrimSpace(s.Slug)
	s.Name = strings.TrimSpace(s.Name)
	s.CollectionAddress = strings.TrimSpace(s.CollectionAddress)
	s.FirstVerifiedCreator = strings.TrimSpace(s.FirstVerifiedCreator)

	if !slugPattern.MatchString(s.Slug) {
		return fmt.Errorf("%w: slug must match %s", ErrInvalidCollection, slugPattern.String())
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCollection)
	}
	if s.CollectionAddress == "" && s.FirstVerifiedCreator == "" {
		return fmt.Errorf("%w: collection_address or first_verified_creator is required", ErrInvalidCollection)
	}

	addresses := append([]string{s.CollectionAddress, s.FirstVerifiedCreator}, s.MintAddresses...)
	for _, address := range addresses {
		if address == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("%w: %q is not a valid address", ErrInvalidCollection, address)
		}
	}
	return nil
}

// CollectionService owns the collection lifecycle: submission, approval and reads
type CollectionService struct {
	db *gorm.DB
}

func NewCollectionService(db *gorm.DB) *CollectionService {
	return &CollectionService{db: db}
}

// Submit stores a new, unapproved collection. Seed mints are registered in the index
// unless another collection already owns them.
func (s *CollectionService) Submit(ctx context.Context, submission CollectionSubmission) (*models.Collection, error) {
	if err := submission.Validate(); err != nil {
		return nil, err
	}

	collection := models.Collection{
		Slug:                 submission.Slug,
		Name:                 submission.Name,
		Description:          submission.Description,
		SubmittedBy:          submission.SubmittedBy,
		CollectionAddress:    submission.CollectionAddress,
		FirstVerifiedCreator: submission.FirstVerifiedCreator,
		MintAddresses:        models.StringList{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&collection)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrCollectionExists, submission.Slug)
		}

		for _, mint := range submission.MintAddresses {
			row := models.CollectionNFT{Mint: mint, CollectionSlug: collection.Slug}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 && !collection.MintAddresses.Contains(mint) {
				collection.MintAddresses = append(collection.MintAddresses, mint)
			}
		}
		if len(collection.MintAddresses) == 0 {
			return nil
		}
		return tx.Model(&models.Collection{}).Where("slug = ?", collection.Slug).
			Update("mint_addresses", collection.MintAddresses).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"slug": collection.Slug, "submitted_by": collection.SubmittedBy}).Info("Collection submitted")
	return &collection, nil
}

// Approve marks a submitted collection as monitored
func (s *CollectionService) Approve(ctx context.Context, slug string) (*models.Collection, error) {
	result := s.db.WithContext(ctx).Model(&models.Collection{}).Where("slug = ?", slug).Update("approved", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, slug)
	}
	logrus.WithField("slug", slug).Info("Collection approved")
	return s.Get(ctx, slug)
}

// Get loads a collection by slug
func (s *CollectionService) Get(ctx context.Context, slug string) (*models.Collection, error) {
	var collection models.Collection
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, slug)
		}
		return nil, err
	}
	return &collection, nil
}

// ListApproved returns every monitored collection ordered by total volume
func (s *CollectionService) ListApproved(ctx context.Context) ([]models.Collection, error) {
	var collections []models.Collection
	if err := s.db.WithContext(ctx).Where("approved = ?", true).
		Order("total_volume desc").Order("slug asc").Find(&collections).Error; err != nil {
		return nil, err
	}
	return collections, nil
}

// ApprovedSlugs returns the slugs of every monitored collection
func (s *CollectionService) ApprovedSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := s.db.WithContext(ctx).Model(&models.Collection{}).Where("approved = ?", true).
		Order("slug asc").Pluck("slug", &slugs).Error; err != nil {
		return nil, err
	}
	return slugs, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"oneoftools/internal/models"
	"oneoftools/pkg/solana"
)

// MetadataFetcher reads a mint's on-chain metadata
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, mint string) (*solana.NFTMetadata, error)
}

// Resolution is the classification of a mint. Entry is nil for untracked mints.
type Resolution struct {
	Entry        *models.CollectionNFT
	ShouldIgnore bool
	// Metadata is set whenever the resolver had to read the chain
	Metadata *solana.NFTMetadata
}

// Tracked reports whether the mint belongs to a collection
func (r *Resolution) Tracked() bool {
	return r.Entry != nil
}

// Resolver maps mints to tracked collections, registering them on first sight
type Resolver struct {
	db       *gorm.DB
	metadata MetadataFetcher
}

func NewResolver(db *gorm.DB, metadata MetadataFetcher) *Resolver {
	return &Resolver{db: db, metadata: metadata}
}

// Lookup reads the tracked-item index only
func (r *Resolver) Lookup(ctx context.Context, mint string) (*models.CollectionNFT, error) {
	var entry models.CollectionNFT
	if err := r.db.WithContext(ctx).Where("mint = ?", mint).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Resolve classifies mint as tracked, ignorable (print edition) or untracked
func (r *Resolver) Resolve(ctx context.Context, mint string) (*Resolution, error) {
	entry, err := r.Lookup(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", mint, err)
	}
	if entry != nil {
		return &Resolution{Entry: entry}, nil
	}

	meta, err := r.metadata.FetchMetadata(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", mint, err)
	}
	if !meta.IsOriginal {
		return &Resolution{ShouldIgnore: true, Metadata: meta}, nil
	}

	slug, err := r.matchCollection(ctx, meta)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return &Resolution{Metadata: meta}, nil
	}

	entry, _, err = r.Register(ctx, slug, mint)
	if err != nil {
		if errors.Is(err, ErrMintClaimed) && entry != nil {
			return &Resolution{Entry: entry, Metadata: meta}, nil
		}
		return nil, err
	}
	return &Resolution{Entry: entry, Metadata: meta}, nil
}

// matchCollection finds the single approved collection claiming the metadata.
// A verified collection address wins; a first verified creator only matches collections
// registered without an address. Ambiguous matches are treated as no match.
func (r *Resolver) matchCollection(ctx context.Context, meta *solana.NFTMetadata) (string, error) {
	db := r.db.WithContext(ctx)

	if meta.VerifiedCollectionAddress != "" {
		var slugs []string
		if err := db.Model(&models.Collection{}).
			Where("approved = ? AND collection_address = ?", true, meta.VerifiedCollectionAddress).
			Pluck("slug", &slugs).Error; err != nil {
			return "", err
		}
		switch len(slugs) {
		case 0:
		case 1:
			return slugs[0], nil
		default:
			logrus.WithFields(logrus.Fields{
				"mint":               meta.Mint,
				"collection_address": meta.VerifiedCollectionAddress,
				"collections":        slugs,
			}).Warn("Multiple collections claim the same collection address, treating as untracked")
			return "", nil
		}
	}

	if meta.FirstVerifiedCreator != "" {
		var slugs []string
		if err := db.Model(&models.Collection{}).
			Where("approved = ? AND first_verified_creator = ?", true, meta.FirstVerifiedCreator).
			Where("collection_address = '' OR collection_address IS NULL").
			Pluck("slug", &slugs).Error; err != nil {
			return "", err
		}
		if len(slugs) == 1 {
			return slugs[0], nil
		}
		if len(slugs) > 1 {
			logrus.WithFields(logrus.Fields{
				"mint":        meta.Mint,
				"creator":     meta.FirstVerifiedCreator,
				"collections": slugs,
			}).Warn("Multiple collections claim the same creator, treating as untracked")
		}
	}
	return "", nil
}

// Register files mint under slug. The index row and the mint_addresses append commit together
// and the append happens only when this call created the index row. It returns the entry and
// whether it was created; a mint already owned by another collection yields ErrMintClaimed
// together with the existing entry.
func (r *Resolver) Register(ctx context.Context, slug, mint string) (*models.CollectionNFT, bool, error) {
	var entry models.CollectionNFT
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		collection, err := lockCollection(tx, slug)
		if err != nil {
			return err
		}

		row := models.CollectionNFT{Mint: mint, CollectionSlug: slug}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return tx.Where("mint = ?", mint).First(&entry).Error
		}
		created = true
		entry = row

		if collection.MintAddresses.Contains(mint) {
			return nil
		}
		mints := append(collection.MintAddresses, mint)
		return tx.Model(&models.Collection{}).Where("slug = ?", slug).Update("mint_addresses", mints).Error
	})
	if err != nil {
		return nil, false, err
	}

	if !created && entry.CollectionSlug != slug {
		return &entry, false, fmt.Errorf("%w: %s is in %s", ErrMintClaimed, mint, entry.CollectionSlug)
	}
	if created {
		logrus.WithFields(logrus.Fields{"mint": mint, "slug": slug}).Info("Registered mint")
	}
	return &entry, created, nil
}

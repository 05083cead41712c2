package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"oneoftools/internal/models"
	"oneoftools/pkg/helius"
)

// ListingsSource returns active marketplace listings
type ListingsSource interface {
	GetActiveListings(ctx context.Context, req helius.ActiveListingsRequest) (*helius.ActiveListingsResponse, error)
}

// FloorRecalculator derives a collection's floor from the cheapest active listing of its tracked mints
type FloorRecalculator struct {
	db       *gorm.DB
	listings ListingsSource
	limit    int
}

func NewFloorRecalculator(db *gorm.DB, listings ListingsSource, limit int) *FloorRecalculator {
	if limit <= 0 {
		limit = 1000
	}
	return &FloorRecalculator{db: db, listings: listings, limit: limit}
}

// Recalculate fetches one page of listings and stores the new floor, clearing it when nothing
// tracked is listed. When the listings call fails the stored floor is left as is and
// ErrListingsUnavailable is returned.
func (f *FloorRecalculator) Recalculate(ctx context.Context, slug string) (*models.CollectionFloor, error) {
	var collection models.Collection
	if err := f.db.WithContext(ctx).Where("slug = ?", slug).First(&collection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, slug)
		}
		return nil, err
	}
	if !collection.HasFilter() {
		logrus.WithField("slug", slug).Warn("Skipping floor recalculation, collection has no filter")
		return nil, fmt.Errorf("%w: %s", ErrNoCollectionFilter, slug)
	}

	req := helius.ActiveListingsRequest{Options: helius.QueryOptions{Limit: f.limit}}
	if collection.CollectionAddress != "" {
		req.Query.VerifiedCollectionAddresses = []string{collection.CollectionAddress}
	} else {
		req.Query.FirstVerifiedCreators = []string{collection.FirstVerifiedCreator}
	}

	resp, err := f.listings.GetActiveListings(ctx, req)
	if err != nil {
		logrus.WithFields(logrus.Fields{"slug": slug}).Warnf("Active listings unavailable, keeping previous floor: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrListingsUnavailable, err)
	}

	floor := SelectFloor(resp.Result, collection.MintAddresses.Set())

	var value interface{} = gorm.Expr("NULL")
	if floor != nil {
		value = floor
	}
	if err := f.db.WithContext(ctx).Model(&models.Collection{}).Where("slug = ?", slug).
		Update("floor", value).Error; err != nil {
		return nil, fmt.Errorf("update floor for %s: %w", slug, err)
	}

	fields := logrus.Fields{"slug": slug}
	if floor != nil {
		fields["mint"] = floor.Mint
		fields["amount"] = floor.Listing.Amount
	}
	logrus.WithFields(fields).Info("Floor recalculated")
	return floor, nil
}

// SelectFloor picks the cheapest listing among tracked mints. Ties keep the first listing encountered.
func SelectFloor(listed []helius.ListedNFT, tracked map[string]struct{}) *models.CollectionFloor {
	var floor *models.CollectionFloor
	for _, nft := range listed {
		if _, ok := tracked[nft.Mint]; !ok {
			continue
		}
		for _, listing := range nft.ActiveListings {
			if floor != nil && listing.Amount >= floor.Listing.Amount {
				continue
			}
			floor = &models.CollectionFloor{
				Mint: nft.Mint,
				Name: nft.Name,
				Listing: models.FloorListing{
					Amount:      listing.Amount,
					Marketplace: listing.Marketplace,
					Seller:      listing.Seller,
					Signature:   listing.TransactionSignature,
				},
			}
		}
	}
	return floor
}

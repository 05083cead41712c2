package models

import (
	"time"
)

// Collection is a boutique collection whose mints are monitored once approved.
//
// Volumes are SOL denominated. Day, week and month volumes are recomputed independently
// over trailing windows, so TotalVolume >= WeekVolume >= DayVolume is not guaranteed.
type Collection struct {
	Slug                 string           `gorm:"primaryKey;size:64" json:"slug"`
	Name                 string           `gorm:"size:128;not null" json:"name"`
	Description          string           `gorm:"type:text" json:"description"`
	Approved             bool             `gorm:"index;default:false" json:"approved"`
	SubmittedBy          string           `gorm:"size:64" json:"submitted_by"`
	CollectionAddress    string           `gorm:"size:64;index" json:"collection_address,omitempty"`
	FirstVerifiedCreator string           `gorm:"size:64;index" json:"first_verified_creator,omitempty"`
	MintAddresses        StringList       `gorm:"not null" json:"mint_addresses"`
	TotalVolume          float64          `gorm:"default:0" json:"total_volume"`
	MonthVolume          float64          `gorm:"default:0" json:"month_volume"`
	WeekVolume           float64          `gorm:"default:0" json:"week_volume"`
	DayVolume            float64          `gorm:"default:0" json:"day_volume"`
	AthSale              *AthSale         `json:"ath_sale"`
	Floor                *CollectionFloor `json:"floor"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Collection) TableName() string {
	return "boutique_collections"
}

// HasFilter reports whether floor and volume queries have a key to filter on
func (c *Collection) HasFilter() bool {
	return c.CollectionAddress != "" || c.FirstVerifiedCreator != ""
}

// CollectionNFT maps a mint to the collection that owns it. The assignment is permanent.
type CollectionNFT struct {
	Mint           string    `gorm:"primaryKey;size:64" json:"mint"`
	CollectionSlug string    `gorm:"size:64;index;not null" json:"collection_slug"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CollectionNFT) TableName() string {
	return "boutique_collection_nfts"
}

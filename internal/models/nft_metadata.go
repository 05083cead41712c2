package models

import "time"

// NFTMetadataRecord caches the on-chain metadata of a mint
type NFTMetadataRecord struct {
	Mint                 string    `gorm:"primaryKey;size:64" json:"mint"`
	Name                 string    `gorm:"size:128" json:"name"`
	Symbol               string    `gorm:"size:32" json:"symbol"`
	URI                  string    `gorm:"type:text" json:"uri"`
	IsOriginal           bool      `json:"is_original"`
	CollectionAddress    string    `gorm:"size:64" json:"collection_address,omitempty"`
	FirstVerifiedCreator string    `gorm:"size:64" json:"first_verified_creator,omitempty"`
	CollectionSlug       string    `gorm:"size:64;index" json:"collection_slug,omitempty"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NFTMetadataRecord) TableName() string {
	return "boutique_nft_metadata"
}

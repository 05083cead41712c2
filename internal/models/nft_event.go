package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NFTEventType is the vendor's activity kind
type NFTEventType string

const (
	NFTEventMint             NFTEventType = "NFT_MINT"
	NFTEventSale             NFTEventType = "NFT_SALE"
	NFTEventListing          NFTEventType = "NFT_LISTING"
	NFTEventCancelListing    NFTEventType = "NFT_CANCEL_LISTING"
	NFTEventBid              NFTEventType = "NFT_BID"
	NFTEventBidCancelled     NFTEventType = "NFT_BID_CANCELLED"
	NFTEventAuctionCreated   NFTEventType = "NFT_AUCTION_CREATED"
	NFTEventAuctionUpdated   NFTEventType = "NFT_AUCTION_UPDATED"
	NFTEventAuctionCancelled NFTEventType = "NFT_AUCTION_CANCELLED"
	NFTEventBurn             NFTEventType = "BURN"
	NFTEventBurnNFT          NFTEventType = "BURN_NFT"
	NFTEventTransfer         NFTEventType = "TRANSFER"
	NFTEventStake            NFTEventType = "STAKE_TOKEN"
	NFTEventUnstake          NFTEventType = "UNSTAKE_TOKEN"
)

// VolumeTypes are the activity kinds counted in collection volume
var VolumeTypes = []NFTEventType{NFTEventMint, NFTEventSale}

// AffectsVolume reports whether t contributes to volume and the ATH sale
func (t NFTEventType) AffectsVolume() bool {
	return t == NFTEventMint || t == NFTEventSale
}

// AffectsFloor reports whether t can change the set of active listings
func (t NFTEventType) AffectsFloor() bool {
	switch t {
	case NFTEventListing, NFTEventCancelListing, NFTEventSale, NFTEventMint, NFTEventBurn, NFTEventBurnNFT:
		return true
	}
	return false
}

// NFTActivity is the canonical, flat record of one on-chain NFT activity
type NFTActivity struct {
	Signature                 string         `gorm:"primaryKey;size:128" json:"signature"`
	Type                      NFTEventType   `gorm:"column:event_type;size:48;index" json:"type"`
	Source                    string         `gorm:"size:48" json:"source"`
	Timestamp                 int64          `gorm:"column:block_time;index" json:"timestamp"`
	Amount                    int64          `json:"amount"`
	Buyer                     string         `gorm:"size:64" json:"buyer,omitempty"`
	Seller                    string         `gorm:"size:64" json:"seller,omitempty"`
	Mint                      string         `gorm:"size:64;index" json:"mint"`
	Name                      string         `gorm:"size:128" json:"name"`
	FirstVerifiedCreator      string         `gorm:"size:64" json:"first_verified_creator,omitempty"`
	VerifiedCollectionAddress string         `gorm:"size:64" json:"verified_collection_address,omitempty"`
	Burned                    bool           `json:"burned,omitempty"`
	Payload                   datatypes.JSON `json:"payload,omitempty"`
}

// BeforeSave keeps the payload column non-null
func (a *NFTActivity) BeforeSave(*gorm.DB) error {
	if len(a.Payload) == 0 {
		a.Payload = datatypes.JSON("{}")
	}
	return nil
}

// NFTEvent is an activity filed under a tracked collection
type NFTEvent struct {
	NFTActivity
	CollectionSlug string    `gorm:"size:64;index;not null" json:"collection_slug"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NFTEvent) TableName() string {
	return "boutique_nft_events"
}

// UnmonitoredNFTEvent is an activity for a mint that no tracked collection claims yet
type UnmonitoredNFTEvent struct {
	NFTActivity
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UnmonitoredNFTEvent) TableName() string {
	return "boutique_unmonitored_nft_events"
}

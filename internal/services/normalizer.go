package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"oneoftools/internal/models"
	"oneoftools/pkg/helius"
)

// DecodeTransactions decodes a webhook batch. Anything but a JSON array of objects
// with a signature is rejected as malformed.
func DecodeTransactions(body []byte) ([]helius.EnhancedTransaction, error) {
	var txs []helius.EnhancedTransaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	for i := range txs {
		if txs[i].Signature == "" {
			return nil, fmt.Errorf("%w: transaction %d has no signature", ErrMalformedPayload, i)
		}
	}
	return txs, nil
}

// DecodeTransaction decodes a single enhanced transaction
func DecodeTransaction(body []byte) (*helius.EnhancedTransaction, error) {
	var tx helius.EnhancedTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tx.Signature == "" {
		return nil, fmt.Errorf("%w: transaction has no signature", ErrMalformedPayload)
	}
	return &tx, nil
}

// NormalizeTransaction flattens the first NFT of the transaction's NFT event into an activity.
// It does no I/O.
func NormalizeTransaction(tx *helius.EnhancedTransaction) (*models.NFTActivity, error) {
	nft, ok := tx.FirstNFT()
	if !ok {
		return nil, ErrMissingNFTEvent
	}
	event := tx.Events.NFT

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	signature := tx.Signature
	if signature == "" {
		signature = event.Signature
	}
	eventType := event.Type
	if eventType == "" {
		eventType = tx.Type
	}
	timestamp := event.Timestamp
	if timestamp == 0 {
		timestamp = tx.Timestamp
	}
	source := event.Source
	if source == "" {
		source = tx.Source
	}

	return &models.NFTActivity{
		Signature:                 signature,
		Type:                      models.NFTEventType(eventType),
		Source:                    source,
		Timestamp:                 timestamp,
		Amount:                    event.Amount,
		Buyer:                     event.Buyer,
		Seller:                    event.Seller,
		Mint:                      nft.Mint,
		Name:                      nft.Name,
		FirstVerifiedCreator:      nft.FirstVerifiedCreator,
		VerifiedCollectionAddress: nft.VerifiedCollectionAddress,
		Burned:                    nft.Burned,
		Payload:                   datatypes.JSON(payload),
	}, nil
}

// TransactionFromEvent wraps a bare NFT event, as returned by the events search endpoint,
// into the transaction shape the pipeline consumes
func TransactionFromEvent(event helius.NFTEvent) helius.EnhancedTransaction {
	return helius.EnhancedTransaction{
		Description: event.Description,
		Type:        event.Type,
		Source:      event.Source,
		Fee:         event.Fee,
		FeePayer:    event.FeePayer,
		Signature:   event.Signature,
		Slot:        event.Slot,
		Timestamp:   event.Timestamp,
		Events:      helius.TransactionEvents{NFT: &event},
	}
}

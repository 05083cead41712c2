package services

import "errors"

var (
	// ErrMalformedPayload marks input that will never decode, so it must not be retried
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnauthorized marks a missing or wrong shared secret
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingNFTEvent     = errors.New("transaction carries no nft event")
	ErrMintNotTracked      = errors.New("mint is not tracked by any collection")
	ErrMintClaimed         = errors.New("mint already belongs to another collection")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrCollectionExists    = errors.New("collection already exists")
	ErrInvalidCollection   = errors.New("invalid collection")
	ErrNoCollectionFilter  = errors.New("collection has neither a collection address nor a first verified creator")
	ErrListingsUnavailable = errors.New("active listings unavailable")
	ErrTaskExists          = errors.New("task already exists")
)

// IsPermanent reports whether a task failing with err should be dropped instead of retried
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrCollectionNotFound) ||
		errors.Is(err, ErrNoCollectionFilter)
}

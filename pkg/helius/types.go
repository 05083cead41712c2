package helius

// TokenTransfer represents a token transfer in the transaction
type TokenTransfer struct {
	FromTokenAccount string  `json:"fromTokenAccount"`
	ToTokenAccount   string  `json:"toTokenAccount"`
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	TokenAmount      float64 `json:"tokenAmount"`
	Mint             string  `json:"mint"`
	TokenStandard    string  `json:"tokenStandard"`
}

// NativeTransfer represents a native SOL transfer in the transaction
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"`
}

// NFTToken is one NFT referenced by an NFT event
type NFTToken struct {
	Mint                      string `json:"mint"`
	TokenStandard             string `json:"tokenStandard,omitempty"`
	Name                      string `json:"name,omitempty"`
	FirstVerifiedCreator      string `json:"firstVerifiedCreator,omitempty"`
	VerifiedCollectionAddress string `json:"verifiedCollectionAddress,omitempty"`
	Burned                    bool   `json:"burned,omitempty"`
}

// NFTEvent is the NFT activity sub-object of an enhanced transaction
type NFTEvent struct {
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Source      string     `json:"source"`
	Amount      int64      `json:"amount"`
	Fee         int64      `json:"fee"`
	FeePayer    string     `json:"feePayer"`
	Signature   string     `json:"signature"`
	Slot        uint64     `json:"slot"`
	Timestamp   int64      `json:"timestamp"`
	SaleType    string     `json:"saleType"`
	Buyer       string     `json:"buyer"`
	Seller      string     `json:"seller"`
	Staker      string     `json:"staker"`
	NFTs        []NFTToken `json:"nfts"`
}

// TransactionEvents holds the typed event sub-objects we consume
type TransactionEvents struct {
	NFT *NFTEvent `json:"nft,omitempty"`
}

// EnhancedTransaction represents the parsed transaction delivered by webhooks and the transactions API
type EnhancedTransaction struct {
	Description      string            `json:"description"`
	Type             string            `json:"type"`
	Source           string            `json:"source"`
	Fee              int64             `json:"fee"`
	FeePayer         string            `json:"feePayer"`
	Signature        string            `json:"signature"`
	Slot             uint64            `json:"slot"`
	Timestamp        int64             `json:"timestamp"`
	TokenTransfers   []TokenTransfer   `json:"tokenTransfers"`
	NativeTransfers  []NativeTransfer  `json:"nativeTransfers"`
	TransactionError interface{}       `json:"transactionError"`
	Events           TransactionEvents `json:"events"`
}

// FirstNFT returns the first NFT referenced by the transaction's NFT event, if any
func (t *EnhancedTransaction) FirstNFT() (NFTToken, bool) {
	if t.Events.NFT == nil || len(t.Events.NFT.NFTs) == 0 {
		return NFTToken{}, false
	}
	return t.Events.NFT.NFTs[0], true
}

// CollectionQuery filters NFT endpoints by creator or collection
type CollectionQuery struct {
	FirstVerifiedCreators       []string `json:"firstVerifiedCreators,omitempty"`
	VerifiedCollectionAddresses []string `json:"verifiedCollectionAddresses,omitempty"`
}

// QueryOptions paginates NFT endpoints
type QueryOptions struct {
	Limit           int    `json:"limit,omitempty"`
	PaginationToken string `json:"paginationToken,omitempty"`
}

// ActiveListingsRequest is the body of the active listings endpoint
type ActiveListingsRequest struct {
	Query   CollectionQuery `json:"query"`
	Options QueryOptions    `json:"options"`
}

// Listing is a single active marketplace listing
type Listing struct {
	TransactionSignature string `json:"transactionSignature"`
	Marketplace          string `json:"marketplace"`
	Amount               int64  `json:"amount"`
	Seller               string `json:"seller"`
}

// ListedNFT groups the active listings of one mint
type ListedNFT struct {
	Mint                      string    `json:"mint"`
	Name                      string    `json:"name"`
	FirstVerifiedCreator      string    `json:"firstVerifiedCreator"`
	VerifiedCollectionAddress string    `json:"verifiedCollectionAddress"`
	ActiveListings            []Listing `json:"activeListings"`
}

// ActiveListingsResponse is one page of active listings
type ActiveListingsResponse struct {
	Result          []ListedNFT `json:"result"`
	PaginationToken string      `json:"paginationToken"`
}

// NFTCollectionFilters narrows NFT event searches to a collection
type NFTCollectionFilters struct {
	FirstVerifiedCreator      []string `json:"firstVerifiedCreator,omitempty"`
	VerifiedCollectionAddress []string `json:"verifiedCollectionAddress,omitempty"`
}

// NFTEventsQuery selects NFT events
type NFTEventsQuery struct {
	Accounts             []string              `json:"accounts,omitempty"`
	Types                []string              `json:"types,omitempty"`
	Sources              []string              `json:"sources,omitempty"`
	StartTime            int64                 `json:"startTime,omitempty"`
	EndTime              int64                 `json:"endTime,omitempty"`
	NFTCollectionFilters *NFTCollectionFilters `json:"nftCollectionFilters,omitempty"`
}

// NFTEventsRequest is the body of the NFT events endpoint
type NFTEventsRequest struct {
	Query   NFTEventsQuery `json:"query"`
	Options QueryOptions   `json:"options"`
}

// NFTEventsResponse is one page of NFT events
type NFTEventsResponse struct {
	Result          []NFTEvent `json:"result"`
	PaginationToken string     `json:"paginationToken"`
}

package solana

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Metaplex token metadata program
var MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

// Metaplex account discriminators
const (
	KeyEditionV1       uint8 = 1
	KeyMasterEditionV1 uint8 = 2
	KeyMetadataV1      uint8 = 4
	KeyMasterEditionV2 uint8 = 6
)

var ErrMetadataNotFound = errors.New("metadata account not found")

// Creator is one entry of the metadata creators list
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// TokenMetadata is the decoded Metaplex metadata account
type TokenMetadata struct {
	Key                  uint8
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	// Collection is set only when the metadata carries a collection field
	Collection         *solana.PublicKey
	CollectionVerified bool
}

// FirstVerifiedCreator returns the first creator with the verified flag, or "" when none
func (m *TokenMetadata) FirstVerifiedCreator() string {
	for _, c := range m.Creators {
		if c.Verified {
			return c.Address.String()
		}
	}
	return ""
}

// VerifiedCollectionAddress returns the collection key when it is verified, or ""
func (m *TokenMetadata) VerifiedCollectionAddress() string {
	if m.Collection == nil || !m.CollectionVerified {
		return ""
	}
	return m.Collection.String()
}

// NFTMetadata is what the ingestion pipeline needs to know about a mint
type NFTMetadata struct {
	Mint                      string
	Name                      string
	Symbol                    string
	URI                       string
	FirstVerifiedCreator      string
	VerifiedCollectionAddress string
	// IsOriginal is false for print editions
	IsOriginal bool
}

func readString(buf *bytes.Reader) (string, error) {
	var strLen uint32
	if err := binary.Read(buf, binary.LittleEndian, &strLen); err != nil {
		return "", err
	}
	if int64(strLen) > int64(buf.Len()) {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", strLen, buf.Len())
	}
	strBytes := make([]byte, strLen)
	if _, err := io.ReadFull(buf, strBytes); err != nil {
		return "", err
	}
	// metadata strings are zero padded to a fixed width
	return strings.TrimRight(string(strBytes), "\x00"), nil
}

func readPublicKey(buf *bytes.Reader) (solana.PublicKey, error) {
	var key solana.PublicKey
	if _, err := io.ReadFull(buf, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

func readBool(buf *bytes.Reader) (bool, error) {
	b, err := buf.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ParseTokenMetadata decodes a Metaplex metadata account
func ParseTokenMetadata(data []byte) (*TokenMetadata, error) {
	buf := bytes.NewReader(data)

	var meta TokenMetadata
	var err error
	if meta.Key, err = buf.ReadByte(); err != nil {
		return nil, err
	}
	if meta.Key != KeyMetadataV1 {
		return nil, fmt.Errorf("unexpected metadata key %d", meta.Key)
	}
	if meta.UpdateAuthority, err = readPublicKey(buf); err != nil {
		return nil, fmt.Errorf("read update authority: %w", err)
	}
	if meta.Mint, err = readPublicKey(buf); err != nil {
		return nil, fmt.Errorf("read mint: %w", err)
	}
	if meta.Name, err = readString(buf); err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}
	if meta.Symbol, err = readString(buf); err != nil {
		return nil, fmt.Errorf("read symbol: %w", err)
	}
	if meta.Uri, err = readString(buf); err != nil {
		return nil, fmt.Errorf("read uri: %w", err)
	}
	if err := binary.Read(buf, binary.LittleEndian, &meta.SellerFeeBasisPoints); err != nil {
		return nil, fmt.Errorf("read seller fee: %w", err)
	}

	hasCreators, err := readBool(buf)
	if err != nil {
		return nil, fmt.Errorf("read creators option: %w", err)
	}
	if hasCreators {
		var numCreators uint32
		if err := binary.Read(buf, binary.LittleEndian, &numCreators); err != nil {
			return nil, fmt.Errorf("read creators length: %w", err)
		}
		// 34 bytes per creator
		if int64(numCreators)*34 > int64(buf.Len()) {
			return nil, fmt.Errorf("creators length %d exceeds account data", numCreators)
		}
		meta.Creators = make([]Creator, 0, numCreators)
		for i := uint32(0); i < numCreators; i++ {
			var c Creator
			if c.Address, err = readPublicKey(buf); err != nil {
				return nil, err
			}
			if c.Verified, err = readBool(buf); err != nil {
				return nil, err
			}
			if c.Share, err = buf.ReadByte(); err != nil {
				return nil, err
			}
			meta.Creators = append(meta.Creators, c)
		}
	}

	// Older accounts may end here
	if meta.PrimarySaleHappened, err = readBool(buf); err != nil {
		return &meta, nil
	}
	if meta.IsMutable, err = readBool(buf); err != nil {
		return &meta, nil
	}

	// edition_nonce: Option<u8>
	if !skipOption(buf, 1) {
		return &meta, nil
	}
	// token_standard: Option<u8>
	if !skipOption(buf, 1) {
		return &meta, nil
	}

	hasCollection, err := readBool(buf)
	if err != nil || !hasCollection {
		return &meta, nil
	}
	verified, err := readBool(buf)
	if err != nil {
		return &meta, nil
	}
	key, err := readPublicKey(buf)
	if err != nil {
		return &meta, nil
	}
	meta.Collection = &key
	meta.CollectionVerified = verified

	return &meta, nil
}

// skipOption consumes a borsh Option of a fixed size payload and reports whether it could
func skipOption(buf *bytes.Reader, size int64) bool {
	present, err := readBool(buf)
	if err != nil {
		return false
	}
	if present {
		if int64(buf.Len()) < size {
			return false
		}
		if _, err := buf.Seek(size, io.SeekCurrent); err != nil {
			return false
		}
	}
	return true
}

// IsPrintEdition reports whether the edition account data belongs to a print
func IsPrintEdition(editionData []byte) bool {
	return len(editionData) > 0 && editionData[0] == KeyEditionV1
}

// FindMetadataAddress derives the metadata PDA of a mint
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		MetadataProgramID.Bytes(),
		mint.Bytes(),
	}, MetadataProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return addr, nil
}

// FindEditionAddress derives the (master) edition PDA of a mint
func FindEditionAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		MetadataProgramID.Bytes(),
		mint.Bytes(),
		[]byte("edition"),
	}, MetadataProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive edition address: %w", err)
	}
	return addr, nil
}

// MetaplexClient reads NFT metadata through a Solana RPC node
type MetaplexClient struct {
	client *rpc.Client
}

func NewMetaplexClient(client *rpc.Client) *MetaplexClient {
	return &MetaplexClient{client: client}
}

// FetchMetadata loads the metadata and edition accounts of a mint in one round trip
func (m *MetaplexClient) FetchMetadata(ctx context.Context, mintAddress string) (*NFTMetadata, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", mintAddress, err)
	}
	metadataAddress, err := FindMetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	editionAddress, err := FindEditionAddress(mint)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{metadataAddress, editionAddress}, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata accounts: %w", err)
	}
	if resp == nil || len(resp.Value) < 2 || resp.Value[0] == nil || resp.Value[0].Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, mintAddress)
	}

	meta, err := ParseTokenMetadata(resp.Value[0].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", mintAddress, err)
	}

	var editionData []byte
	if resp.Value[1] != nil && resp.Value[1].Data != nil {
		editionData = resp.Value[1].Data.GetBinary()
	}

	return &NFTMetadata{
		Mint:                      mintAddress,
		Name:                      meta.Name,
		Symbol:                    meta.Symbol,
		URI:                       meta.Uri,
		FirstVerifiedCreator:      meta.FirstVerifiedCreator(),
		VerifiedCollectionAddress: meta.VerifiedCollectionAddress(),
		IsOriginal:                !IsPrintEdition(editionData),
	}, nil
}

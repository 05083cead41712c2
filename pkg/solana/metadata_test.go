package solana

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metadataFixture struct {
	name       string
	creators   []Creator
	collection *solana.PublicKey
	verified   bool
	truncate   bool
}

func writeString(buf *bytes.Buffer, s string, width int) {
	padded := make([]byte, width)
	copy(padded, s)
	binary.Write(buf, binary.LittleEndian, uint32(width))
	buf.Write(padded)
}

func (f metadataFixture) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(KeyMetadataV1)
	updateAuthority := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	buf.Write(updateAuthority[:])
	buf.Write(mint[:])
	writeString(&buf, f.name, 32)
	writeString(&buf, "ONE", 10)
	writeString(&buf, "https://arweave.net/abc", 200)
	binary.Write(&buf, binary.LittleEndian, uint16(500))

	if len(f.creators) == 0 {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		binary.Write(&buf, binary.LittleEndian, uint32(len(f.creators)))
		for _, c := range f.creators {
			buf.Write(c.Address[:])
			if c.Verified {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			buf.WriteByte(c.Share)
		}
	}
	if f.truncate {
		return buf.Bytes()
	}

	buf.WriteByte(1)          // primary sale happened
	buf.WriteByte(1)          // is mutable
	buf.Write([]byte{1, 254}) // edition nonce
	buf.Write([]byte{1, 0})   // token standard
	if f.collection == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		if f.verified {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.Write(f.collection[:])
	}
	buf.WriteByte(0) // uses
	return buf.Bytes()
}

func TestParseTokenMetadata(t *testing.T) {
	unverified := solana.NewWallet().PublicKey()
	creator := solana.NewWallet().PublicKey()
	collection := solana.NewWallet().PublicKey()

	t.Run("Creators and verified collection", func(t *testing.T) {
		data := metadataFixture{
			name: "One of One #1",
			creators: []Creator{
				{Address: unverified, Verified: false, Share: 0},
				{Address: creator, Verified: true, Share: 100},
			},
			collection: &collection,
			verified:   true,
		}.encode()

		meta, err := ParseTokenMetadata(data)
		require.NoError(t, err)
		assert.Equal(t, "One of One #1", meta.Name)
		assert.Equal(t, "ONE", meta.Symbol)
		assert.Equal(t, "https://arweave.net/abc", meta.Uri)
		assert.Equal(t, uint16(500), meta.SellerFeeBasisPoints)
		require.Len(t, meta.Creators, 2)
		assert.Equal(t, creator.String(), meta.FirstVerifiedCreator())
		assert.Equal(t, collection.String(), meta.VerifiedCollectionAddress())
		assert.True(t, meta.IsMutable)
	})

	t.Run("Unverified collection is ignored", func(t *testing.T) {
		data := metadataFixture{name: "x", collection: &collection, verified: false}.encode()
		meta, err := ParseTokenMetadata(data)
		require.NoError(t, err)
		require.NotNil(t, meta.Collection)
		assert.Empty(t, meta.VerifiedCollectionAddress())
		assert.Empty(t, meta.FirstVerifiedCreator())
	})

	t.Run("Legacy account without trailing fields", func(t *testing.T) {
		data := metadataFixture{
			name:     "legacy",
			creators: []Creator{{Address: creator, Verified: true, Share: 100}},
			truncate: true,
		}.encode()
		meta, err := ParseTokenMetadata(data)
		require.NoError(t, err)
		assert.Equal(t, "legacy", meta.Name)
		assert.Equal(t, creator.String(), meta.FirstVerifiedCreator())
		assert.Nil(t, meta.Collection)
	})

	t.Run("Wrong account key", func(t *testing.T) {
		data := metadataFixture{name: "x"}.encode()
		data[0] = KeyMasterEditionV2
		_, err := ParseTokenMetadata(data)
		assert.Error(t, err)
	})

	t.Run("Corrupt string length", func(t *testing.T) {
		data := metadataFixture{name: "x"}.encode()
		binary.LittleEndian.PutUint32(data[65:69], 1<<30)
		_, err := ParseTokenMetadata(data)
		assert.Error(t, err)
	})
}

func TestIsPrintEdition(t *testing.T) {
	assert.True(t, IsPrintEdition([]byte{KeyEditionV1, 0, 0}))
	assert.False(t, IsPrintEdition([]byte{KeyMasterEditionV2, 0}))
	assert.False(t, IsPrintEdition([]byte{KeyMasterEditionV1}))
	assert.False(t, IsPrintEdition(nil))
}

func TestFindAddresses(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	metadata, err := FindMetadataAddress(mint)
	require.NoError(t, err)
	edition, err := FindEditionAddress(mint)
	require.NoError(t, err)

	assert.NotEqual(t, metadata, edition)
	again, err := FindMetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, metadata, again)
}

package domain

import (
	"encoding/binary"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Address is a deterministic record address: the last 20 bytes of keccak256 over the
// length-prefixed seeds, bech32 encoded with AddressHRP.
type Address string

func (a Address) String() string {
	return string(a)
}

// DeriveAddress maps a seed tuple to its address. The same tuple always yields the same address.
func DeriveAddress(seeds ...[]byte) Address {
	h := sha3.NewLegacyKeccak256()
	var prefix [binary.MaxVarintLen64]byte
	for _, seed := range seeds {
		n := binary.PutUvarint(prefix[:], uint64(len(seed)))
		h.Write(prefix[:n])
		h.Write(seed)
	}
	sum := h.Sum(nil)

	encoded, err := bech32.ConvertAndEncode(AddressHRP, sum[12:])
	if err != nil {
		// 20 bytes under a fixed hrp always encode
		panic(err)
	}
	return Address(encoded)
}

func AccountAddress(externalID string) Address {
	return DeriveAddress([]byte(AccountSeed), []byte(externalID))
}

func AdminListAddress(externalID string) Address {
	return DeriveAddress([]byte(AdminListSeed), []byte(externalID))
}

func CreatorListAddress(externalID string) Address {
	return DeriveAddress([]byte(CreatorListSeed), []byte(externalID))
}

func ContentAddress(account Address, author common.Address, hash common.Hash) Address {
	return DeriveAddress([]byte(ContentSeed), []byte(account), author.Bytes(), hash.Bytes())
}

// ParseAddress validates a bech32 record address.
func ParseAddress(s string) (Address, error) {
	hrp, data, err := bech32.DecodeAndConvert(s)
	if err != nil {
		return "", ErrInvalidAddress.With("%v", err)
	}
	if hrp != AddressHRP || len(data) != common.AddressLength {
		return "", ErrInvalidAddress.With("%s", s)
	}
	return Address(s), nil
}

// ParseContentHash parses a 0x-prefixed 32-byte hex content hash.
func ParseContentHash(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, ErrInvalidContentHash.With("%q: %v", s, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, ErrInvalidContentHash.With("%q: %d bytes", s, len(raw))
	}
	return common.BytesToHash(raw), nil
}

// ParseIdentity parses a hex signer identity.
func ParseIdentity(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress.With("%s", s)
	}
	return common.HexToAddress(s), nil
}

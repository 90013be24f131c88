// Package common holds the primitive data types shared by every layer of
// the harness: addresses, hashes, 256-bit unsigned integers and raw byte
// strings, as described by the core data model.
package common

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// AddressLength is the number of bytes in an Address.
const AddressLength = 20

// HashLength is the number of bytes in a Hash.
const HashLength = 32

// Address is a 20-byte Ethereum-style account identifier.
type Address [AddressLength]byte

// BytesToAddress right-aligns b within an Address, truncating from the left
// if b is longer than AddressLength.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// HexToAddress decodes a hex string (with or without "0x" prefix) into an
// Address.
func HexToAddress(s string) Address {
	return BytesToAddress(FromHex(s))
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte { return a[:] }

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Hex renders the address as a "0x"-prefixed lowercase hex string.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Hash is a 32-byte hash value, used for storage keys/values, topics and
// code hashes.
type Hash [HashLength]byte

// BytesToHash right-aligns b within a Hash, truncating from the left if b
// is longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash decodes a hex string (with or without "0x" prefix) into a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(FromHex(s))
}

// AddressToHash left-pads an address into a 32-byte word, the layout Solidity
// uses for address-typed ABI values and indexed event topics.
func AddressToHash(a Address) Hash {
	var h Hash
	copy(h[HashLength-AddressLength:], a[:])
	return h
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether the hash is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Hex renders the hash as a "0x"-prefixed lowercase hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// Bytes is a variable-length byte sequence, used for code and call data.
type Bytes []byte

// Hex renders the bytes as a "0x"-prefixed lowercase hex string.
func (b Bytes) Hex() string { return "0x" + hex.EncodeToString(b) }

// U256 is an unsigned 256-bit integer with checked arithmetic, backed by
// uint256.Int the way every repo in the retrieval pack represents EVM words.
type U256 = uint256.Int

// ZeroU256 returns a freshly allocated zero-valued U256.
func ZeroU256() *U256 { return new(U256) }

// NewU256 constructs a U256 from a machine-word value.
func NewU256(v uint64) *U256 { return new(U256).SetUint64(v) }

// MustU256FromHex parses a hex string into a U256, panicking on malformed
// input — intended for literal constants, not untrusted input.
func MustU256FromHex(s string) *U256 {
	v := new(U256)
	if err := v.SetFromHex(s); err != nil {
		panic(fmt.Sprintf("common: bad U256 literal %q: %v", s, err))
	}
	return v
}

// FromHex decodes a hex string, accepting an optional "0x" prefix. Malformed
// input decodes to nil.
func FromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

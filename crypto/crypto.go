// Package crypto provides the hashing primitives the rest of the harness is
// built on: Keccak-256 and the contract-address derivation formula of
// component design §4.1 step 3.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/parables-dev/parables/common"
)

// Keccak256 hashes the concatenation of data with Keccak-256.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hash hashes the concatenation of data with Keccak-256 and
// returns the result as a Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// CreateAddress derives the address of a contract deployed by sender at the
// given (pre-increment) nonce: keccak256(rlp([sender, nonce]))[12:], the
// formula component design §4.1 specifies for Executor.Apply's deploy path.
func CreateAddress(sender common.Address, nonce uint64) common.Address {
	enc := rlpList(rlpBytes(sender.Bytes()), rlpUint(nonce))
	return common.BytesToAddress(Keccak256(enc))
}

// rlpBytes encodes a byte string per RLP's single-string rules. Addresses
// and nonces in this harness are always well under the 56-byte long-string
// threshold, so only the short-string form is needed.
func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	out := make([]byte, 0, len(b)+1)
	out = append(out, 0x80+byte(len(b)))
	return append(out, b...)
}

// rlpUint encodes an unsigned integer as its minimal big-endian byte
// representation (RLP has no fixed-width integers; zero encodes as the
// empty string).
func rlpUint(v uint64) []byte {
	if v == 0 {
		return rlpBytes(nil)
	}
	var buf [8]byte
	n := 8
	for n > 0 {
		buf[8-n] = byte(v >> (8 * uint(n-1)))
		n--
	}
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return rlpBytes(buf[i:])
}

// rlpList wraps items as an RLP list. Combined payload here is always well
// under 56 bytes, so only the short-list form is needed.
func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, 0xc0+byte(len(payload)))
	return append(out, payload...)
}

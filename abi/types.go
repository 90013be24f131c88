package abi

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
)

// Type is one of the primitive Solidity ABI types this package can pack
// and unpack. The teacher's own accounts/abi predates event support, so
// this is a fresh, intentionally narrow codec rather than a port — see
// the design notes for why only these types are covered.
type Type int

const (
	Uint256 Type = iota
	Address
	Bool
	Bytes32
	String
	Bytes
)

func (t Type) String() string {
	switch t {
	case Uint256:
		return "uint256"
	case Address:
		return "address"
	case Bool:
		return "bool"
	case Bytes32:
		return "bytes32"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ParseType maps a canonical Solidity type name to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "uint256", "uint":
		return Uint256, nil
	case "address":
		return Address, nil
	case "bool":
		return Bool, nil
	case "bytes32":
		return Bytes32, nil
	case "string":
		return String, nil
	case "bytes":
		return Bytes, nil
	default:
		return 0, errors.Errorf("abi: unsupported type %q", s)
	}
}

// isDynamic reports whether a value of this type is encoded out-of-line
// (a 32-byte offset in the head, the actual payload in the tail),
// matching Solidity ABI encoding rules.
func (t Type) isDynamic() bool {
	return t == String || t == Bytes
}

// EncodeError wraps a failure packing a Go value into an ABI argument.
type EncodeError struct {
	Arg string
	Err error
}

func (e *EncodeError) Error() string {
	return errors.Wrapf(e.Err, "abi: encoding %s", e.Arg).Error()
}

// DecodeError wraps a failure unpacking an ABI-encoded value.
type DecodeError struct {
	Arg string
	Err error
}

func (e *DecodeError) Error() string {
	return errors.Wrapf(e.Err, "abi: decoding %s", e.Arg).Error()
}

// encodeHead appends the static 32-byte head word for v of type t. For
// dynamic types, dataOffset is the byte offset (from the start of the
// args block) where the tail payload for this value begins.
func encodeHead(t Type, v interface{}, dataOffset uint64) ([32]byte, error) {
	var word [32]byte
	switch t {
	case Uint256:
		u, ok := v.(*common.U256)
		if !ok {
			return word, errors.Errorf("want *common.U256, got %T", v)
		}
		word = u.Bytes32()
	case Address:
		a, ok := v.(common.Address)
		if !ok {
			return word, errors.Errorf("want common.Address, got %T", v)
		}
		copy(word[12:], a.Bytes())
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return word, errors.Errorf("want bool, got %T", v)
		}
		if b {
			word[31] = 1
		}
	case Bytes32:
		h, ok := v.(common.Hash)
		if !ok {
			return word, errors.Errorf("want common.Hash, got %T", v)
		}
		word = h
	case String, Bytes:
		binary.BigEndian.PutUint64(word[24:], dataOffset)
	default:
		return word, errors.Errorf("unsupported type %s", t)
	}
	return word, nil
}

// encodeTail appends the variable-length payload for a dynamic value:
// a length word followed by the data, padded to a 32-byte boundary.
func encodeTail(t Type, v interface{}) ([]byte, error) {
	var raw []byte
	switch t {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("want string, got %T", v)
		}
		raw = []byte(s)
	case Bytes:
		b, ok := v.(common.Bytes)
		if !ok {
			bb, ok := v.([]byte)
			if !ok {
				return nil, errors.Errorf("want []byte, got %T", v)
			}
			raw = bb
		} else {
			raw = b
		}
	default:
		return nil, errors.Errorf("type %s is not dynamic", t)
	}

	out := make([]byte, 32)
	binary.BigEndian.PutUint64(out[24:], uint64(len(raw)))
	out = append(out, raw...)
	if pad := (32 - len(raw)%32) % 32; pad != 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out, nil
}

// decodeValue reads the value of type t given its head word and, for
// dynamic types, access to the full args block (so it can follow the
// offset into the tail).
func decodeValue(t Type, head [32]byte, block []byte) (interface{}, error) {
	switch t {
	case Uint256:
		return new(common.U256).SetBytes32(head[:]), nil
	case Address:
		return common.BytesToAddress(head[12:]), nil
	case Bool:
		return head[31] != 0, nil
	case Bytes32:
		return common.Hash(head), nil
	case String, Bytes:
		offset := binary.BigEndian.Uint64(head[24:])
		if offset+32 > uint64(len(block)) {
			return nil, errors.New("offset out of range")
		}
		length := binary.BigEndian.Uint64(block[offset+24 : offset+32])
		start := offset + 32
		end := start + length
		if end > uint64(len(block)) {
			return nil, errors.New("length out of range")
		}
		raw := block[start:end]
		if t == String {
			return string(raw), nil
		}
		return common.Bytes(raw), nil
	default:
		return nil, errors.Errorf("unsupported type %s", t)
	}
}

// Package abi is a minimal Solidity ABI JSON codec: selectors, simple
// argument packing/unpacking, and indexed-event log decoding. It exists
// because the teacher's own accounts/abi predates event support (its
// ABI struct carries Methods but no Events), so evm's typed log drain
// needs something else to decode against.
package abi

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
	"github.com/parables-dev/parables/vm"
)

// Argument is one named, typed parameter of a Method or Event.
type Argument struct {
	Name    string
	Type    Type
	Indexed bool
}

// Method is a callable function entry: its 4-byte selector is the first
// four bytes of keccak256(canonical signature).
type Method struct {
	Name   string
	Inputs []Argument
}

// Signature renders name(type,type,...) the way Solidity selectors are
// computed from.
func (m Method) Signature() string {
	sig := m.Name + "("
	for i, in := range m.Inputs {
		if i > 0 {
			sig += ","
		}
		sig += in.Type.String()
	}
	return sig + ")"
}

// Selector returns the 4-byte function selector.
func (m Method) Selector() [4]byte {
	h := crypto.Keccak256([]byte(m.Signature()))
	var sel [4]byte
	copy(sel[:], h[:4])
	return sel
}

// Pack encodes a call to m with the given positional arguments, selector
// prefix included.
func (m Method) Pack(args ...interface{}) (common.Bytes, error) {
	if len(args) != len(m.Inputs) {
		return nil, errors.Errorf("abi: %s wants %d args, got %d", m.Name, len(m.Inputs), len(args))
	}
	sel := m.Selector()
	body, err := packArgs(m.Inputs, args)
	if err != nil {
		return nil, &EncodeError{Arg: m.Name, Err: err}
	}
	return append(common.Bytes(sel[:]), body...), nil
}

// Event is a named, typed log entry: its topic-0 is keccak256(canonical
// signature), exactly like a Method's selector but 32 bytes wide.
type Event struct {
	Name   string
	Inputs []Argument
}

// Signature renders name(type,type,...).
func (e Event) Signature() string {
	sig := e.Name + "("
	for i, in := range e.Inputs {
		if i > 0 {
			sig += ","
		}
		sig += in.Type.String()
	}
	return sig + ")"
}

// Topic0 returns the event's selector topic.
func (e Event) Topic0() common.Hash {
	return crypto.Keccak256Hash([]byte(e.Signature()))
}

// Decoded is one decoded event occurrence: argument name to Go value
// (*common.U256, common.Address, bool, common.Hash, string, common.Bytes).
type Decoded map[string]interface{}

// Decode unpacks log against e: indexed arguments come from log.Topics
// (in declaration order, skipping topic-0), non-indexed arguments are
// packed the same way a Method's return values would be.
func (e Event) Decode(log vm.LogEntry) (Decoded, error) {
	out := make(Decoded, len(e.Inputs))
	topicIdx := 1
	var dataArgs []Argument
	for _, in := range e.Inputs {
		if !in.Indexed {
			dataArgs = append(dataArgs, in)
			continue
		}
		if topicIdx >= len(log.Topics) {
			return nil, &DecodeError{Arg: in.Name, Err: errors.New("missing topic")}
		}
		var head [32]byte
		head = log.Topics[topicIdx]
		v, err := decodeValue(indexedStorageType(in.Type), head, nil)
		if err != nil {
			return nil, &DecodeError{Arg: in.Name, Err: err}
		}
		out[in.Name] = v
		topicIdx++
	}
	if len(dataArgs) > 0 {
		values, err := unpackArgs(dataArgs, log.Data)
		if err != nil {
			return nil, &DecodeError{Arg: e.Name, Err: err}
		}
		for i, in := range dataArgs {
			out[in.Name] = values[i]
		}
	}
	return out, nil
}

// indexedStorageType maps a dynamic type to the 32-byte hash Solidity
// actually stores in an indexed topic slot (keccak256 of the value, for
// string/bytes) versus the direct head encoding for static types. This
// codec treats indexed dynamic types as opaque Bytes32 since the
// original value is not recoverable from the topic alone.
func indexedStorageType(t Type) Type {
	if t.isDynamic() {
		return Bytes32
	}
	return t
}

// packArgs packs a static/dynamic argument list as Solidity's ABI
// encoder would: fixed-size head words, with dynamic values replaced by
// an offset into a trailing tail block.
func packArgs(args []Argument, values []interface{}) (common.Bytes, error) {
	head := make([]byte, 32*len(args))
	var tail []byte
	for i, a := range args {
		if a.Type.isDynamic() {
			offset := uint64(32*len(args) + len(tail))
			w, err := encodeHead(a.Type, values[i], offset)
			if err != nil {
				return nil, errors.Wrapf(err, "arg %s", a.Name)
			}
			copy(head[32*i:], w[:])
			chunk, err := encodeTail(a.Type, values[i])
			if err != nil {
				return nil, errors.Wrapf(err, "arg %s", a.Name)
			}
			tail = append(tail, chunk...)
			continue
		}
		w, err := encodeHead(a.Type, values[i], 0)
		if err != nil {
			return nil, errors.Wrapf(err, "arg %s", a.Name)
		}
		copy(head[32*i:], w[:])
	}
	return append(head, tail...), nil
}

// unpackArgs is packArgs's inverse.
func unpackArgs(args []Argument, data []byte) ([]interface{}, error) {
	if len(data) < 32*len(args) {
		return nil, errors.Errorf("data too short: want >=%d bytes, got %d", 32*len(args), len(data))
	}
	values := make([]interface{}, len(args))
	for i, a := range args {
		var head [32]byte
		copy(head[:], data[32*i:32*i+32])
		v, err := decodeValue(a.Type, head, data)
		if err != nil {
			return nil, errors.Wrapf(err, "arg %s", a.Name)
		}
		values[i] = v
	}
	return values, nil
}

// Contract is a parsed ABI JSON document: methods and events keyed by
// name, the shape the teacher's own accounts/abi.ABI takes minus event
// support.
type Contract struct {
	Methods map[string]Method
	Events  map[string]Event
}

type jsonArg struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

type jsonEntry struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Inputs []jsonArg `json:"inputs"`
}

// Parse reads a standard Ethereum ABI JSON array into a Contract.
func Parse(data []byte) (*Contract, error) {
	var entries []jsonEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "abi: parsing JSON")
	}
	c := &Contract{Methods: make(map[string]Method), Events: make(map[string]Event)}
	for _, e := range entries {
		switch e.Type {
		case "function", "":
			inputs, err := parseArgs(e.Inputs)
			if err != nil {
				return nil, errors.Wrapf(err, "abi: method %s", e.Name)
			}
			c.Methods[e.Name] = Method{Name: e.Name, Inputs: inputs}
		case "event":
			inputs, err := parseArgs(e.Inputs)
			if err != nil {
				return nil, errors.Wrapf(err, "abi: event %s", e.Name)
			}
			c.Events[e.Name] = Event{Name: e.Name, Inputs: inputs}
		}
	}
	return c, nil
}

func parseArgs(in []jsonArg) ([]Argument, error) {
	out := make([]Argument, len(in))
	for i, a := range in {
		t, err := ParseType(a.Type)
		if err != nil {
			return nil, err
		}
		out[i] = Argument{Name: a.Name, Type: t, Indexed: a.Indexed}
	}
	return out, nil
}

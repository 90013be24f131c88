package vm

import "github.com/parables-dev/parables/common"

// memory is linear, word-addressable, growable byte memory, adapted from
// the teacher's core/vm/memory.go.
type memory struct {
	store []byte
}

func newMemory() *memory {
	return &memory{}
}

// wordCount returns the number of 32-byte words needed to hold size bytes.
func wordCount(size uint64) uint64 {
	return (size + 31) / 32
}

func (m *memory) resize(size uint64) {
	if uint64(len(m.store)) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, m.store)
	m.store = grown
}

func (m *memory) set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	m.resize(offset + size)
	copy(m.store[offset:offset+size], value)
}

func (m *memory) get(offset, size uint64) []byte {
	if size == 0 {
		return []byte{}
	}
	m.resize(offset + size)
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

func (m *memory) setWord(offset uint64, val *common.U256) {
	m.resize(offset + 32)
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

func (m *memory) setByte(offset uint64, b byte) {
	m.resize(offset + 1)
	m.store[offset] = b
}

func (m *memory) len() int { return len(m.store) }

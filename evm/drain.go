package evm

import (
	"github.com/parables-dev/parables/abi"
)

// LogDrainer is a builder over Evm's ordered log stream, scoped to one
// event signature and decoding into T. Draining (Iter) removes the
// records it decodes from the owning Evm so repeated draining never
// replays the same log twice.
type LogDrainer[T any] struct {
	evm    *Evm
	sig    abi.Event
	decode func(abi.Decoded) (T, error)
	preds  []func(T) bool
}

// NewLogDrainer builds a drainer scoped to e, matching records whose
// topic-0 equals sig.Topic0(), decoded via decode.
func NewLogDrainer[T any](e *Evm, sig abi.Event, decode func(abi.Decoded) (T, error)) *LogDrainer[T] {
	return &LogDrainer[T]{evm: e, sig: sig, decode: decode}
}

// Filter adds a predicate over the decoded event; only records passing
// every registered predicate are returned by Iter, though all
// sig-matching records are still consumed.
func (d *LogDrainer[T]) Filter(pred func(T) bool) *LogDrainer[T] {
	d.preds = append(d.preds, pred)
	return d
}

func (d *LogDrainer[T]) matches(idx int) bool {
	topic0 := d.sig.Topic0()
	l := d.evm.logs[idx].entry
	return len(l.Topics) > 0 && l.Topics[0] == topic0
}

func (d *LogDrainer[T]) passes(v T) bool {
	for _, p := range d.preds {
		if !p(v) {
			return false
		}
	}
	return true
}

// Count reports how many matching records remain, without draining.
func (d *LogDrainer[T]) Count() int {
	n := 0
	for i := range d.evm.logs {
		if d.matches(i) {
			n++
		}
	}
	return n
}

// HasMatches reports whether any matching record remains.
func (d *LogDrainer[T]) HasMatches() bool { return d.Count() > 0 }

// Iter decodes every remaining record matching sig, in call_index/
// emission order, removing them from the owning Evm's log stream.
// Records failing to decode abort the whole drain with an error.
func (d *LogDrainer[T]) Iter() ([]T, error) {
	var decoded []T
	var kept []taggedLog
	for i, tl := range d.evm.logs {
		if !d.matches(i) {
			kept = append(kept, tl)
			continue
		}
		raw, err := d.sig.Decode(tl.entry)
		if err != nil {
			return nil, &LogDecodeError{Event: d.sig.Name, Err: err}
		}
		v, err := d.decode(raw)
		if err != nil {
			return nil, &LogDecodeError{Event: d.sig.Name, Err: err}
		}
		if d.passes(v) {
			decoded = append(decoded, v)
		}
	}
	d.evm.logs = kept
	return decoded, nil
}

// Package linker substitutes Solidity's __<34-char library id>__
// placeholders in hex bytecode with registered library addresses.
package linker

import (
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/parables-dev/parables/common"
	"github.com/parables-dev/parables/crypto"
)

// A placeholder is two underscores, a 34-character library id, two
// underscores.
var placeholderRE = regexp.MustCompile(`__.{34}__`)

// LinkConflictError reports an attempt to register a library id that is
// already registered to a different address.
type LinkConflictError struct {
	LibraryID string
}

func (e *LinkConflictError) Error() string {
	return errors.Errorf("linker: library %q already registered", e.LibraryID).Error()
}

// UnresolvedLinkError reports a placeholder left unresolved after Link.
type UnresolvedLinkError struct {
	LibraryID string
}

func (e *UnresolvedLinkError) Error() string {
	return errors.Errorf("linker: unresolved library placeholder %q", e.LibraryID).Error()
}

// Linker resolves library placeholders against a registry of addresses.
// Repeated calls to Link on the same code (common in property tests that
// redeploy one fixture thousands of times) are served from an LRU cache
// keyed by the code's hash and the registry's generation, so identical
// fixtures don't repeatedly re-scan for placeholders.
type Linker struct {
	mu         sync.RWMutex
	libraries  map[string]common.Address
	generation uint64
	cache      *lru.Cache[cacheKey, common.Bytes]
}

type cacheKey struct {
	codeHash   common.Hash
	generation uint64
}

// New builds an empty Linker with a bounded result cache.
func New(cacheSize int) *Linker {
	cache, _ := lru.New[cacheKey, common.Bytes](cacheSize)
	return &Linker{libraries: make(map[string]common.Address), cache: cache}
}

// Register associates libraryID with addr. Re-registering the same id
// with the same address is a no-op; registering it with a different
// address fails LinkConflictError.
func (l *Linker) Register(libraryID string, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.libraries[libraryID]; ok {
		if existing == addr {
			return nil
		}
		return &LinkConflictError{LibraryID: libraryID}
	}
	l.libraries[libraryID] = addr
	l.generation++
	return nil
}

// Link substitutes every __<id>__ placeholder in code (hex, with or
// without a 0x prefix) with the 40 hex digits of its registered address
// and returns the decoded bytes; each 38-character placeholder thus
// yields 20 bytes. An id resolves to the library registered under
// exactly that id, or else to the longest registered id that the
// placeholder's id extends with '0' padding. Placeholders are literal ASCII
// text embedded in the hex string itself — not hex-encoded bytes — so
// substitution happens before any hex decoding.
func (l *Linker) Link(code string) (common.Bytes, error) {
	hexStr := code
	if len(hexStr) >= 2 && hexStr[0] == '0' && (hexStr[1] == 'x' || hexStr[1] == 'X') {
		hexStr = hexStr[2:]
	}

	l.mu.RLock()
	gen := l.generation
	l.mu.RUnlock()

	key := cacheKey{codeHash: crypto.Keccak256Hash([]byte(hexStr)), generation: gen}
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}

	var resolveErr error
	replaced := placeholderRE.ReplaceAllStringFunc(hexStr, func(ph string) string {
		if resolveErr != nil {
			return ph
		}
		id := ph[2 : len(ph)-2]
		l.mu.RLock()
		addr, ok := l.libraries[id]
		if !ok {
			// A shorter registered id padded out to 34 characters with
			// '0's matches too; the longest such id wins.
			best := -1
			for name, a := range l.libraries {
				if len(name) > best && strings.HasPrefix(id, name) && strings.Trim(id[len(name):], "0") == "" {
					addr, ok, best = a, true, len(name)
				}
			}
		}
		l.mu.RUnlock()
		if !ok {
			resolveErr = &UnresolvedLinkError{LibraryID: id}
			return ph
		}
		return hex.EncodeToString(addr.Bytes())
	})
	if resolveErr != nil {
		return nil, resolveErr
	}

	linked, err := hex.DecodeString(replaced)
	if err != nil {
		return nil, errors.Wrap(err, "linker: decoding linked bytecode")
	}
	l.cache.Add(key, common.Bytes(linked))
	return common.Bytes(linked), nil
}

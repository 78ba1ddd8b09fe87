package decode

import (
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/mipsnap/errs"
)

// Constructor creates a fresh decoder instance.
type Constructor func() Decoder

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a decoder constructor under id.
func Register(id string, c Constructor) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[id]; ok {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateDecoder, id)
	}
	registry[id] = c

	return nil
}

// MustRegister is like Register but panics on error. It is meant for init functions.
func MustRegister(id string, c Constructor) {
	if err := Register(id, c); err != nil {
		panic(err)
	}
}

// New creates a decoder for the protocol id.
func New(id string) (Decoder, error) {
	registryMu.RLock()
	c, ok := registry[id]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownDecoder, id)
	}

	return c(), nil
}

// IDs returns the registered protocol ids in sorted order.
func IDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

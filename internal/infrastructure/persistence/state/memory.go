package state

import (
	"context"
	"sync"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

// MemoryRepository keeps encoded states in a map. It goes through the
// codec so stored states never alias caller memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	codec  *Codec
	blobs  map[string][]byte
	failOn error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(codec *Codec) *MemoryRepository {
	return &MemoryRepository{codec: codec, blobs: make(map[string][]byte)}
}

// FailWith makes every subsequent call return err; nil restores normal
// operation. Used to simulate an unavailable store.
func (r *MemoryRepository) FailWith(err error) {
	r.mu.Lock()
	r.failOn = err
	r.mu.Unlock()
}

func (r *MemoryRepository) Load(_ context.Context, key string) (*wizard.State, error) {
	r.mu.RLock()
	data, ok := r.blobs[key]
	failOn := r.failOn
	r.mu.RUnlock()
	if failOn != nil {
		return nil, failOn
	}
	if !ok {
		return nil, wizard.ErrStateNotFound
	}
	return r.codec.Decode(data)
}

func (r *MemoryRepository) Save(_ context.Context, key string, s *wizard.State) error {
	data, err := r.codec.Encode(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return r.failOn
	}
	r.blobs[key] = data
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return r.failOn
	}
	delete(r.blobs, key)
	return nil
}

func (r *MemoryRepository) PurgeIdle(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return 0, r.failOn
	}
	removed := 0
	for key, data := range r.blobs {
		s, err := r.codec.Decode(data)
		if err != nil || s.LastActivity < cutoff.UnixMilli() {
			delete(r.blobs, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored states.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

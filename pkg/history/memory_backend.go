package history

import (
	"context"
	"sync"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// MemoryBackend keeps the history in process memory only.
type MemoryBackend struct {
	mu      sync.Mutex
	entries []skill.GeneratedSkill
	saves   int
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns a backend seeded with entries.
func NewMemoryBackend(entries ...skill.GeneratedSkill) *MemoryBackend {
	return &MemoryBackend{entries: entries}
}

func (b *MemoryBackend) Load(context.Context) ([]skill.GeneratedSkill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]skill.GeneratedSkill(nil), b.entries...), nil
}

func (b *MemoryBackend) Save(_ context.Context, entries []skill.GeneratedSkill) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append([]skill.GeneratedSkill(nil), entries...)
	b.saves++
	return nil
}

// Saves returns how many times the history was written.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *MemoryBackend) Close() error { return nil }

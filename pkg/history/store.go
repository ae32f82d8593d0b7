// Package history keeps the ordered list of generated skills, newest first,
// and writes the whole list through to a Backend after every change.
package history

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/telemetry"
	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("generated skill not found")

// Backend loads and saves the complete history. Save always receives the
// full ordered list and replaces whatever was stored before.
type Backend interface {
	Load(ctx context.Context) ([]skill.GeneratedSkill, error)
	Save(ctx context.Context, entries []skill.GeneratedSkill) error
	Close() error
}

// Store is the in-memory history. A failed save leaves the in-memory change
// applied; the next successful save rewrites the backend in full.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	entries []skill.GeneratedSkill
}

// Open loads the history from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	entries, err := backend.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load history")
	}
	return &Store{backend: backend, entries: entries}, nil
}

// List returns a copy of every entry, newest first.
func (s *Store) List() []skill.GeneratedSkill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]skill.GeneratedSkill, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (skill.GeneratedSkill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.entries[i].Clone(), nil
	}
	return skill.GeneratedSkill{}, errors.Wrapf(ErrNotFound, "id %s", id)
}

// Prepend adds a new entry at the front.
func (s *Store) Prepend(ctx context.Context, g skill.GeneratedSkill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]skill.GeneratedSkill, 0, len(s.entries)+1)
	entries = append(entries, g.Clone())
	s.entries = append(entries, s.entries...)
	return s.save(ctx, "prepend")
}

// Remove deletes the entry with the given id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	return s.save(ctx, "remove")
}

// Replace swaps the package of the entry with the given id in place,
// keeping its id, creation time and raw response.
func (s *Store) Replace(ctx context.Context, id string, pkg skill.SkillPackage) (skill.GeneratedSkill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return skill.GeneratedSkill{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	s.entries[i].Package = pkg.Clone()
	updated := s.entries[i].Clone()
	return updated, s.save(ctx, "replace")
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) index(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) save(ctx context.Context, op string) error {
	snapshot := make([]skill.GeneratedSkill, len(s.entries))
	copy(snapshot, s.entries)

	err := telemetry.WithSpan(ctx, "history.save", func(ctx context.Context) error {
		return s.backend.Save(ctx, snapshot)
	}, attribute.String("history.op", op), attribute.Int("history.entries", len(snapshot)))
	return errors.Wrap(err, "failed to persist history")
}

package flowstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// MemoryStore keeps flows in a map.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]Flow
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows: make(map[string]Flow),
		now:   time.Now,
	}
}

func (s *MemoryStore) SaveFlow(ctx context.Context, name, domain string, cmds []command.Command) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	if err := command.ValidateAll(cmds); err != nil {
		return "", err
	}
	sum, err := Checksum(cmds)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.flows {
		if f.Name == name && f.Domain == domain && f.Checksum == sum {
			return f.ID, nil
		}
	}

	f := Flow{
		ID:        uuid.NewString(),
		Name:      name,
		Domain:    domain,
		Commands:  command.List(command.Clone(cmds)),
		CreatedAt: s.now(),
		Checksum:  sum,
	}
	s.flows[f.ID] = f
	return f.ID, nil
}

func (s *MemoryStore) ListFlows(ctx context.Context, domain string) ([]Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]Flow, 0, len(s.flows))
	for _, f := range s.flows {
		if domain == "" || f.Domain == domain {
			flows = append(flows, f.Clone())
		}
	}
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].ID < flows[j].ID
		}
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
	return flows, nil
}

func (s *MemoryStore) GetFlow(ctx context.Context, id string) (Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.flows[id]
	if !ok {
		return Flow{}, ErrFlowNotFound
	}
	return f.Clone(), nil
}

func (s *MemoryStore) DeleteFlow(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[id]; !ok {
		return ErrFlowNotFound
	}
	delete(s.flows, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

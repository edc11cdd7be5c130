package player

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by FindByID when no record exists for the id.
var ErrNotFound = eris.New("player not found")

// Store is the narrow persistence port. It must be read-after-write
// consistent within one instance; cross-instance mutations of contested
// fields are serialized by the cluster lock at the call sites, not here.
type Store interface {
	Save(ctx context.Context, p *Player) error
	FindByID(ctx context.Context, id string) (*Player, error)
	Update(ctx context.Context, p *Player) error
}

// RedisStore persists player records as JSON values under a namespaced key.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(id string) string {
	return s.namespace + ":player:" + id
}

func (s *RedisStore) Save(ctx context.Context, p *Player) error {
	bz, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "failed to encode player")
	}
	if err := s.client.Set(ctx, s.key(p.ID), bz, 0).Err(); err != nil {
		return eris.Wrap(err, "failed to save player")
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*Player, error) {
	bz, err := s.client.Get(ctx, s.key(id)).Bytes()
	if eris.Is(eris.Cause(err), redis.Nil) {
		return nil, eris.Wrapf(ErrNotFound, "id %q", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to load player")
	}
	var p Player
	if err := json.Unmarshal(bz, &p); err != nil {
		return nil, eris.Wrap(err, "failed to decode player")
	}
	return &p, nil
}

func (s *RedisStore) Update(ctx context.Context, p *Player) error {
	return s.Save(ctx, p)
}

// MemoryStore is an in-process Store used by tests and single-instance runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Player
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Player{}}
}

func (s *MemoryStore) Save(_ context.Context, p *Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	clone.Collection = append([]string(nil), p.Collection...)
	s.records[p.ID] = &clone
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "id %q", id)
	}
	clone := *p
	clone.Collection = append([]string(nil), p.Collection...)
	return &clone, nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Player) error {
	return s.Save(ctx, p)
}

package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	internalredis "github.com/kwhite/songvote/internal/redis"
	redislib "github.com/redis/go-redis/v9"
)

const (
	draftKeyPrefix = "vote:draft:"
	draftTTL       = 24 * time.Hour
)

// DraftStore persists the in-progress vote for the currently loaded
// song so it survives reloads. Local-only: it never performs the vote
// submission itself.
type DraftStore interface {
	Save(ctx context.Context, clientID string, draft Draft) error
	// Restore returns the stored draft only when its song id matches
	// exactly; stale drafts for a different song are ignored.
	Restore(ctx context.Context, clientID string, songID int64) (*Draft, error)
	Clear(ctx context.Context, clientID string) error
}

// RedisDraftStore keeps one draft per client in Redis.
type RedisDraftStore struct {
	client *redislib.Client
}

func NewRedisDraftStore(client *redislib.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func NewRedisDraftStoreFromDefault() *RedisDraftStore {
	return &RedisDraftStore{client: internalredis.Client()}
}

func (s *RedisDraftStore) ensureClient() error {
	if s.client != nil {
		return nil
	}

	s.client = internalredis.Client()
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	return nil
}

func (s *RedisDraftStore) Save(ctx context.Context, clientID string, draft Draft) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	if draft.SavedAt.IsZero() {
		draft.SavedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, draftKey(clientID), payload, draftTTL).Err()
}

func (s *RedisDraftStore) Restore(ctx context.Context, clientID string, songID int64) (*Draft, error) {
	if err := s.ensureClient(); err != nil {
		return nil, err
	}
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	raw, err := s.client.Get(ctx, draftKey(clientID)).Bytes()
	if err != nil {
		if err == redislib.Nil {
			return nil, nil
		}
		return nil, err
	}

	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, err
	}

	if draft.SongID != songID {
		return nil, nil
	}
	return &draft, nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, clientID string) error {
	if err := s.ensureClient(); err != nil {
		return err
	}
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}

	return s.client.Del(ctx, draftKey(clientID)).Err()
}

func draftKey(clientID string) string {
	return draftKeyPrefix + clientID
}

// MemoryDraftStore backs sessions when Redis is unavailable. Drafts
// survive a session restart within the same process only.
type MemoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]Draft
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string]Draft)}
}

func (s *MemoryDraftStore) Save(_ context.Context, clientID string, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.SavedAt.IsZero() {
		draft.SavedAt = time.Now().UTC()
	}
	s.drafts[clientID] = draft
	return nil
}

func (s *MemoryDraftStore) Restore(_ context.Context, clientID string, songID int64) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[clientID]
	if !ok || draft.SongID != songID {
		return nil, nil
	}
	return &draft, nil
}

func (s *MemoryDraftStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, clientID)
	return nil
}

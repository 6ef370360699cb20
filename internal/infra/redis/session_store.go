package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anthem-kiosk/internal/domain"
	"github.com/redis/go-redis/v9"
)

// sessionKey is the fixed namespace for the kiosk's durable session
// record. One kiosk, one record.
const sessionKey = "kiosk:session"

// SessionStore keeps the durable session record in Redis so the wizard
// survives a kiosk restart. The TTL bounds how long an abandoned
// session lingers.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Save(ctx context.Context, record domain.SessionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context) (domain.SessionRecord, bool, error) {
	data, err := s.client.Get(ctx, sessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionRecord{}, false, nil
	}
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("load session record: %w", err)
	}
	var record domain.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("unmarshal session record: %w", err)
	}
	return record, true, nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}

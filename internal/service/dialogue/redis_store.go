package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deskchat/internal/config"
	"deskchat/internal/models"

	redis "github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "deskchat:pending:"

// DefaultPendingTTL bounds how long an unfinished pending action survives
// with no follow-up from the user.
const DefaultPendingTTL = 30 * time.Minute

// RedisStore keeps pending actions in redis so state survives process
// restarts and is shared across instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis from app config and verifies the link.
func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}
	ttl := time.Duration(cfg.Redis.PendingTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.PendingAction, error) {
	raw, err := s.client.Get(ctx, pendingKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending action: %w", err)
	}
	var pending models.PendingAction
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("decode pending action: %w", err)
	}
	if pending.Slots == nil {
		pending.Slots = make(map[string]string)
	}
	if pending.Prompted == nil {
		pending.Prompted = make(map[string]bool)
	}
	return &pending, nil
}

func (s *RedisStore) Put(ctx context.Context, sessionID string, pending *models.PendingAction) error {
	encoded, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending action: %w", err)
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+sessionID, encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending action: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear pending action: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 72 * time.Hour

// Ledger remembers provider event ids that were fully applied so redeliveries
// can be acknowledged without touching the registration store. It is an
// optimisation only; the store's payment id uniqueness is what guarantees a
// single registration.
type Ledger interface {
	Seen(ctx context.Context, provider payment.Provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider payment.Provider, eventID string) error
}

type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisLedger{client: client, ttl: ttl}, nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func key(provider payment.Provider, eventID string) string {
	return fmt.Sprintf("workshop:processed:%s:%s", provider, eventID)
}

func (l *RedisLedger) Seen(ctx context.Context, provider payment.Provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, key(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking processed event: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) MarkProcessed(ctx context.Context, provider payment.Provider, eventID string) error {
	if eventID == "" {
		return nil
	}
	err := l.client.SetNX(ctx, key(provider, eventID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err()
	if err != nil {
		return fmt.Errorf("marking processed event: %w", err)
	}
	return nil
}

// NoopLedger never remembers anything; every delivery goes to the store.
type NoopLedger struct{}

func (NoopLedger) Seen(ctx context.Context, provider payment.Provider, eventID string) (bool, error) {
	return false, nil
}

func (NoopLedger) MarkProcessed(ctx context.Context, provider payment.Provider, eventID string) error {
	return nil
}

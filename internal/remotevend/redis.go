package remotevend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vendkiosk/kiosk-backend/pkg/redis"
)

type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	RemoteVendKey(kioskID int64) string
}

// RedisMailbox shares the mailbox across API instances. Put is a plain SET
// (last write wins) and Take is GETDEL, so two pollers never both receive
// the same request.
type RedisMailbox struct {
	store kvStore
	ttl   time.Duration
}

func NewRedisMailbox(store kvStore, ttl time.Duration) *RedisMailbox {
	return &RedisMailbox{store: store, ttl: ttl}
}

func (m *RedisMailbox) Put(ctx context.Context, kioskID, slotID int64) error {
	return m.store.Set(ctx, m.store.RemoteVendKey(kioskID), strconv.FormatInt(slotID, 10), m.ttl)
}

func (m *RedisMailbox) Take(ctx context.Context, kioskID int64) (*int64, error) {
	raw, err := m.store.GetDel(ctx, m.store.RemoteVendKey(kioskID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	slotID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode remote vend entry %q: %w", raw, err)
	}
	return &slotID, nil
}

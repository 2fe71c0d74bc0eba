// README: Moderation flags backed by Redis (suspensions, publish bans with expiry).
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"unipool/internal/types"
)

const (
	suspendKeyPrefix = "moderation:suspended:%s"
	banKeyPrefix     = "moderation:publish_ban:%s"
)

// FlagStore keeps the fast-path moderation flags. A publish ban stores its
// reason under a key that expires exactly at banUntil, so lapsed bans clear
// themselves without a sweep.
type FlagStore struct {
	redis *redis.Client
}

func NewFlagStore(redis *redis.Client) *FlagStore {
	return &FlagStore{redis: redis}
}

func (s *FlagStore) Suspend(ctx context.Context, userID types.ID) error {
	return s.redis.Set(ctx, suspendKey(userID), "1", 0).Err()
}

func (s *FlagStore) Unsuspend(ctx context.Context, userID types.ID) error {
	return s.redis.Del(ctx, suspendKey(userID)).Err()
}

func (s *FlagStore) IsSuspended(ctx context.Context, userID types.ID) (bool, error) {
	_, err := s.redis.Get(ctx, suspendKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FlagStore) SetPublishBan(ctx context.Context, driverID types.ID, until time.Time, reason string) error {
	pipe := s.redis.Pipeline()
	key := banKey(driverID)
	pipe.Set(ctx, key, reason, 0)
	pipe.ExpireAt(ctx, key, until)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *FlagStore) ClearPublishBan(ctx context.Context, driverID types.ID) error {
	return s.redis.Del(ctx, banKey(driverID)).Err()
}

func (s *FlagStore) IsPublishBanned(ctx context.Context, driverID types.ID) (bool, error) {
	_, err := s.redis.Get(ctx, banKey(driverID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func suspendKey(userID types.ID) string {
	return fmt.Sprintf(suspendKeyPrefix, string(userID))
}

func banKey(driverID types.ID) string {
	return fmt.Sprintf(banKeyPrefix, string(driverID))
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "2F_"

var (
	ErrChallengeNotFound = errors.New("two-factor challenge not found")
	ErrBackend           = errors.New("challenge cache unavailable")
)

// ChallengeCache keeps at most one hashed two-factor code per account.
type ChallengeCache struct {
	redis redis.UniversalClient
}

func NewChallengeCache(client redis.UniversalClient) *ChallengeCache {
	return &ChallengeCache{redis: client}
}

func (c *ChallengeCache) key(accountID uint64) string {
	return challengeKeyPrefix + strconv.FormatUint(accountID, 10)
}

// Set writes the hash and its expiry in one SET EX, replacing any live challenge.
func (c *ChallengeCache) Set(ctx context.Context, accountID uint64, codeHash string, ttl time.Duration) error {
	if err := c.redis.Set(ctx, c.key(accountID), codeHash, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (c *ChallengeCache) Get(ctx context.Context, accountID uint64) (string, error) {
	hash, err := c.redis.Get(ctx, c.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrChallengeNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return hash, nil
}

// Delete reports whether a live challenge was removed.
func (c *ChallengeCache) Delete(ctx context.Context, accountID uint64) (bool, error) {
	n, err := c.redis.Del(ctx, c.key(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

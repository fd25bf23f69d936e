package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sparksfinance/ledger-core/internal/logger"
)

// BalanceCacheRepository caches committed account balances in Redis.
// Entries are invalidated after every transfer touching the account, so a
// cached value is never older than the last committed mutation plus TTL.
type BalanceCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached balances
}

func NewBalanceCacheRepository(client *redis.Client, expiration time.Duration) *BalanceCacheRepository {
	return &BalanceCacheRepository{client: client, exp: expiration}
}

func balanceKey(accountID uuid.UUID) string {
	return fmt.Sprintf("account_balance:%s", accountID)
}

// Get fetches a cached balance. Returns an error on cache miss.
func (r *BalanceCacheRepository) Get(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	key := balanceKey(accountID)

	val, err := r.client.Get(ctx, key).Result()

	logger.Log.Infow("cache get", "key", key, "value", val, "error", err)

	if err != nil {
		if err == redis.Nil {
			return decimal.Zero, fmt.Errorf("balance not cached for account %s", accountID)
		}
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Set caches a balance with the configured TTL.
func (r *BalanceCacheRepository) Set(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	key := balanceKey(accountID)

	err := r.client.Set(ctx, key, balance.StringFixed(2), r.exp).Err()

	logger.Log.Infow("cache set", "key", key, "value", balance.StringFixed(2), "error", err)

	return err
}

// Invalidate drops cached balances for the given accounts.
func (r *BalanceCacheRepository) Invalidate(ctx context.Context, accountIDs ...uuid.UUID) error {
	if len(accountIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, balanceKey(id))
	}

	err := r.client.Del(ctx, keys...).Err()

	logger.Log.Infow("cache invalidate", "keys", keys, "error", err)

	return err
}

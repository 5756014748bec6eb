package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key 布局
const (
	redisSignerPrefix = "mev:signer:"
	redisReportKey    = "mev:report"
)

const redisOpTimeout = 3 * time.Second

// RedisStore 把快照存为 Redis string，key 为 mev:signer:<address>。
// 快照本身就是幂等的全量文档，无需 TTL，断线重启直接续写。
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Load(signer string) (*SignerStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.rdb.Get(ctx, redisSignerPrefix+signer).Bytes()
	switch {
	case err == redis.Nil:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", signer, err)
	}

	var stats SignerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", signer, err)
	}
	return &stats, nil
}

func (r *RedisStore) Save(stats *SignerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", stats.Address, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.rdb.Set(ctx, redisSignerPrefix+stats.Address, data, 0).Err()
}

func (r *RedisStore) SaveReport(rep *Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.rdb.Set(ctx, redisReportKey, data, 0).Err()
}

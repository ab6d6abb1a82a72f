// Package redisindex implements the coverage index on Redis. Cell
// membership is one key per (datasource, resolution, cell) so adds and
// removes from ingestion pipelines stay independent.
package redisindex

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spatialmesh/stac-federator/internal/core/observability"
)

type Options struct {
	Resolution int
	OpTimeout  time.Duration
	Password   string
	DB         int
}

type Index struct {
	rdb       *redis.Client
	res       int
	opTimeout time.Duration
}

func New(ctx context.Context, addr string, opts Options) (*Index, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	ot := opts.OpTimeout
	if ot <= 0 {
		ot = 250 * time.Millisecond
	}
	return &Index{rdb: rdb, res: opts.Resolution, opTimeout: ot}, nil
}

func (ix *Index) Resolution() int { return ix.res }

func (ix *Index) Close() error { return ix.rdb.Close() }

func (ix *Index) key(datasource, cell string) string {
	return fmt.Sprintf("cov:%s:%d:%s", datasource, ix.res, cell)
}

// Covers is an any-hit membership check over the candidate cells.
func (ix *Index) Covers(ctx context.Context, datasource string, cells []string) (bool, error) {
	if len(cells) == 0 {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, ix.opTimeout)
	defer cancel()

	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = ix.key(datasource, c)
	}

	start := time.Now()
	vals, err := ix.rdb.MGet(ctx, keys...).Result()
	observability.ObserveCoverageOp("covers", err, time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("coverage mget: %w", err)
	}
	for _, v := range vals {
		if v != nil {
			return true, nil
		}
	}
	return false, nil
}

func (ix *Index) Add(ctx context.Context, datasource string, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, ix.opTimeout)
	defer cancel()

	start := time.Now()
	pipe := ix.rdb.Pipeline()
	for _, c := range cells {
		pipe.Set(ctx, ix.key(datasource, c), "1", 0)
	}
	_, err := pipe.Exec(ctx)
	observability.ObserveCoverageOp("add", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("coverage add: %w", err)
	}
	return nil
}

func (ix *Index) Remove(ctx context.Context, datasource string, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, ix.opTimeout)
	defer cancel()

	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = ix.key(datasource, c)
	}

	start := time.Now()
	err := ix.rdb.Del(ctx, keys...).Err()
	observability.ObserveCoverageOp("remove", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("coverage del: %w", err)
	}
	return nil
}

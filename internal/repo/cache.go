package repo

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
)

// Cache helpers shared by the repositories. A nil cache degrades to
// database-only reads.

func getCache(ctx context.Context, c gocache.Cache, key string, v any) (bool, error) {
	if c == nil {
		return false, nil
	}
	if err := c.GetCtx(ctx, key, v); err != nil {
		if c.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func setCache(ctx context.Context, c gocache.Cache, key string, ttl time.Duration, v any) {
	if c == nil || ttl <= 0 {
		return
	}
	if err := c.SetWithExpireCtx(ctx, key, v, ttl); err != nil {
		logx.WithContext(ctx).Errorf("set cache %s: %v", key, err)
	}
}

func delCache(ctx context.Context, c gocache.Cache, key string) {
	if c == nil {
		return
	}
	if err := c.DelCtx(ctx, key); err != nil {
		logx.WithContext(ctx).Errorf("del cache %s: %v", key, err)
	}
}

package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goatkit/sourcehost/pkg/source"
)

// cachedBridge decorates a source.HttpBridge with a redis-backed response
// cache, keyed on method+URL, so repeated devtool calls against the same
// plugin don't keep hammering the same upstream while iterating.
type cachedBridge struct {
	next   source.HttpBridge
	client *redis.Client
	ttl    time.Duration
}

// newCachedBridge wraps next in a redis response cache talking to addr. A
// failure to reach redis at construction time is not fatal: Request falls
// back to next uncached, logging once per miss path.
func newCachedBridge(next source.HttpBridge, addr string) *cachedBridge {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &cachedBridge{next: next, client: client, ttl: 5 * time.Minute}
}

func (c *cachedBridge) cacheKey(req source.HttpRequest) string {
	return "sourcehost:http:" + req.Method + ":" + req.URL
}

// Request serves req from the redis cache when a prior response for the
// same method+URL is still fresh, otherwise forwards to next and caches a
// successful (status != 0) response before returning it.
func (c *cachedBridge) Request(ctx context.Context, req source.HttpRequest) (source.HttpResponse, error) {
	key := c.cacheKey(req)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var resp source.HttpResponse
		if json.Unmarshal(raw, &resp) == nil {
			return resp, nil
		}
	}

	resp, err := c.next.Request(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.Status == 0 {
		return resp, nil
	}

	if raw, merr := json.Marshal(resp); merr == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logger.Debug("http cache write failed", "key", key, "error", err)
		}
	}
	return resp, nil
}

func (c *cachedBridge) Close() error { return c.client.Close() }

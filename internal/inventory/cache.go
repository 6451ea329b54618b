package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/redis/go-redis/v9"
)

// Cache keeps recent search results so repeated connects skip the inventory.
type Cache interface {
	Get(ctx context.Context, name string) (Devices, bool)
	Put(ctx context.Context, name string, devices Devices)
}

// CacheConfig selects the cache backend. An empty Addr disables caching.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// NewCache returns a redis backed cache, or one that stores nothing when no
// address is configured.
func NewCache(cfg CacheConfig) (Cache, error) {
	if cfg.Addr == "" {
		obs.Debug("inventory.cache", obs.Fields{"type": "none"})
		return nopCache{}, nil
	}
	obs.Debug("inventory.cache", obs.Fields{"type": "redis", "addr": cfg.Addr})
	return newRedisCache(cfg)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (Devices, bool) { return nil, false }
func (nopCache) Put(context.Context, string, Devices)        {}

const cacheKeyPrefix = "spectro:devices:"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(cfg CacheConfig) (*redisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisCache{client: rdb, ttl: ttl}, nil
}

var _ Cache = (*redisCache)(nil)

// searches are case insensitive, so keys are too
func cacheKey(name string) string { return cacheKeyPrefix + strings.ToLower(name) }

func (r *redisCache) Get(ctx context.Context, name string) (Devices, bool) {
	val, err := r.client.Get(ctx, cacheKey(name)).Result()
	if err != nil {
		if err != redis.Nil {
			obs.Error("redis.get_devices", obs.Fields{"err": err.Error(), "name": name})
		}
		obs.InventoryLookupsTotal.WithLabelValues("cache_miss").Inc()
		return nil, false
	}
	var devices Devices
	if err := json.Unmarshal([]byte(val), &devices); err != nil {
		obs.Error("redis.unmarshal_devices", obs.Fields{"err": err.Error(), "name": name})
		return nil, false
	}
	obs.InventoryLookupsTotal.WithLabelValues("cache_hit").Inc()
	return devices, true
}

func (r *redisCache) Put(ctx context.Context, name string, devices Devices) {
	data, err := json.Marshal(devices)
	if err != nil {
		obs.Error("redis.marshal_devices", obs.Fields{"err": err.Error(), "name": name})
		return
	}
	if err := r.client.Set(ctx, cacheKey(name), data, r.ttl).Err(); err != nil {
		obs.Error("redis.set_devices", obs.Fields{"err": err.Error(), "name": name})
	}
}

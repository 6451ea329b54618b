package main

import "github.com/matst80/spectroconnect/internal/obs"

// newStateStore creates either an in-memory or Redis-backed relay registry.
func newStateStore(redisAddr, redisPassword string, redisDB int) (StateStore, error) {
	if redisAddr == "" {
		obs.Info("state.backend", obs.Fields{"type": "in-memory"})
		return newMemoryState(), nil
	}
	obs.Info("state.backend", obs.Fields{"type": "redis", "addr": redisAddr})
	return newRedisStateStore(redisAddr, redisPassword, redisDB)
}

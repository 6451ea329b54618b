package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/redis/go-redis/v9"
)

const (
	keyRelayPrefix = "relayd:relay:"
	keyTotal       = "relayd:relays_total"
	keyRejected    = "relayd:rejected_total"
)

// relayRecord is the JSON form stored in Redis (sans connection).
type relayRecord struct {
	ID       string    `json:"id"`
	Client   string    `json:"client"`
	Target   string    `json:"target"`
	Started  time.Time `json:"started"`
	Instance string    `json:"instance"`
}

// redisStateStore keeps connections locally and publishes relay records and
// counters to Redis so several gateways report shared totals.
type redisStateStore struct {
	client     *redis.Client
	mu         sync.Mutex
	active     map[string]*relayInfo
	closing    bool
	ready      bool
	instanceID string

	heartbeatInterval time.Duration
	recordTTL         time.Duration
}

func newRedisStateStore(addr, password string, db int) (*redisStateStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &redisStateStore{
		client:            rdb,
		active:            make(map[string]*relayInfo),
		instanceID:        "relayd-" + uuid.NewString()[:8],
		heartbeatInterval: 30 * time.Second,
		recordTTL:         2 * time.Minute,
	}, nil
}

var _ StateStore = (*redisStateStore)(nil)

func (r *redisStateStore) setClosing(closing bool) { r.mu.Lock(); r.closing = closing; r.mu.Unlock() }
func (r *redisStateStore) setReady(ready bool)     { r.mu.Lock(); r.ready = ready; r.mu.Unlock() }
func (r *redisStateStore) isClosing() bool         { r.mu.Lock(); defer r.mu.Unlock(); return r.closing }
func (r *redisStateStore) isReady() bool           { r.mu.Lock(); defer r.mu.Unlock(); return r.ready }

func (r *redisStateStore) record(ri *relayInfo) relayRecord {
	return relayRecord{ID: ri.id, Client: ri.remote, Target: ri.target, Started: ri.started, Instance: r.instanceID}
}

func (r *redisStateStore) addRelay(ri *relayInfo) error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return fmt.Errorf("gateway shutting down")
	}
	r.active[ri.id] = ri
	obs.ActiveRelays.Set(float64(len(r.active)))
	r.mu.Unlock()

	data, err := json.Marshal(r.record(ri))
	if err != nil {
		return fmt.Errorf("marshal relay record: %w", err)
	}
	ctx := context.Background()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, keyRelayPrefix+ri.id, data, r.recordTTL)
	pipe.Incr(ctx, keyTotal)
	if _, err := pipe.Exec(ctx); err != nil {
		// the relay itself works without the registry
		obs.Error("redis.add_relay", obs.Fields{"err": err.Error(), "id": ri.id})
	}
	return nil
}

func (r *redisStateStore) removeRelay(id string) {
	r.mu.Lock()
	delete(r.active, id)
	obs.ActiveRelays.Set(float64(len(r.active)))
	r.mu.Unlock()
	if err := r.client.Del(context.Background(), keyRelayPrefix+id).Err(); err != nil {
		obs.Error("redis.remove_relay", obs.Fields{"err": err.Error(), "id": id})
	}
}

func (r *redisStateStore) recordRejected() {
	if err := r.client.Incr(context.Background(), keyRejected).Err(); err != nil {
		obs.Error("redis.rejected", obs.Fields{"err": err.Error()})
	}
}

func (r *redisStateStore) relays() []relayView {
	r.mu.Lock()
	out := make([]relayView, 0, len(r.active))
	for _, ri := range r.active {
		out = append(out, ri.view())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (r *redisStateStore) closeAll() int {
	r.mu.Lock()
	conns := make([]*relayInfo, 0, len(r.active))
	for _, ri := range r.active {
		conns = append(conns, ri)
	}
	r.mu.Unlock()
	for _, ri := range conns {
		_ = ri.client.Close()
	}
	return len(conns)
}

// getStats reports local active relays and cluster wide totals.
func (r *redisStateStore) getStats() (int, int64, int64) {
	r.mu.Lock()
	active := len(r.active)
	r.mu.Unlock()
	ctx := context.Background()
	total, err := r.client.Get(ctx, keyTotal).Int64()
	if err != nil && err != redis.Nil {
		obs.Error("redis.stats.total", obs.Fields{"err": err.Error()})
	}
	rejected, err := r.client.Get(ctx, keyRejected).Int64()
	if err != nil && err != redis.Nil {
		obs.Error("redis.stats.rejected", obs.Fields{"err": err.Error()})
	}
	return active, total, rejected
}

// startMaintenance refreshes record TTLs for relays this instance owns.
func (r *redisStateStore) startMaintenance(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.heartbeat(ctx)
		}
	}
}

func (r *redisStateStore) heartbeat(ctx context.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		if err := r.client.Expire(ctx, keyRelayPrefix+id, r.recordTTL).Err(); err != nil {
			obs.Error("redis.heartbeat.expire", obs.Fields{"err": err.Error(), "id": id})
		}
	}
}

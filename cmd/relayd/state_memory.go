package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/matst80/spectroconnect/internal/obs"
)

type memoryState struct {
	mu       sync.Mutex
	active   map[string]*relayInfo
	closing  bool
	ready    bool
	total    int64
	rejected int64
}

func newMemoryState() *memoryState {
	return &memoryState{active: make(map[string]*relayInfo)}
}

var _ StateStore = (*memoryState)(nil)

func (s *memoryState) setClosing(closing bool) { s.mu.Lock(); s.closing = closing; s.mu.Unlock() }
func (s *memoryState) setReady(ready bool)     { s.mu.Lock(); s.ready = ready; s.mu.Unlock() }
func (s *memoryState) isClosing() bool         { s.mu.Lock(); defer s.mu.Unlock(); return s.closing }
func (s *memoryState) isReady() bool           { s.mu.Lock(); defer s.mu.Unlock(); return s.ready }

func (s *memoryState) addRelay(r *relayInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return fmt.Errorf("gateway shutting down")
	}
	if _, exists := s.active[r.id]; exists {
		return fmt.Errorf("relay id already registered: %s", r.id)
	}
	s.active[r.id] = r
	s.total++
	obs.ActiveRelays.Set(float64(len(s.active)))
	return nil
}

func (s *memoryState) removeRelay(id string) {
	s.mu.Lock()
	delete(s.active, id)
	obs.ActiveRelays.Set(float64(len(s.active)))
	s.mu.Unlock()
}

func (s *memoryState) recordRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *memoryState) relays() []relayView {
	s.mu.Lock()
	out := make([]relayView, 0, len(s.active))
	for _, r := range s.active {
		out = append(out, r.view())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (s *memoryState) closeAll() int {
	s.mu.Lock()
	conns := make([]*relayInfo, 0, len(s.active))
	for _, r := range s.active {
		conns = append(conns, r)
	}
	s.mu.Unlock()
	for _, r := range conns {
		_ = r.client.Close()
	}
	return len(conns)
}

func (s *memoryState) getStats() (int, int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active), s.total, s.rejected
}

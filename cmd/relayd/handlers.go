package main

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/matst80/spectroconnect/internal/proto"
	"github.com/matst80/spectroconnect/internal/ratelimit"
	"github.com/matst80/spectroconnect/internal/relay"
)

// maxHandshake bounds the relay line; longer lines are rejected.
const maxHandshake = 512

// bufferedConn reads through the handshake reader so bytes the client sent
// right after its relay line are not lost.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *bufferedConn) CloseWrite() error {
	if cw, ok := b.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (b *bufferedConn) CloseRead() error {
	if cr, ok := b.Conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return nil
}

type gateway struct {
	state   StateStore
	limiter *ratelimit.Limiter
	cfg     *Config
	dialer  *net.Dialer
	conns   sync.WaitGroup
}

func newGateway(state StateStore, limiter *ratelimit.Limiter, cfg *Config) *gateway {
	return &gateway{state: state, limiter: limiter, cfg: cfg, dialer: &net.Dialer{Timeout: cfg.DialTimeout}}
}

func (g *gateway) acceptRelays(ctx context.Context, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				obs.Error("accept.relay.timeout", obs.Fields{"err": err.Error()})
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				obs.Error("accept.relay", obs.Fields{"err": err.Error()})
			}
			return
		}
		g.conns.Add(1)
		go func() {
			defer g.conns.Done()
			g.handleRelayConn(c)
		}()
	}
}

// wait blocks until every handler has returned.
func (g *gateway) wait() { g.conns.Wait() }

func (g *gateway) reject(c net.Conn, reason string, f obs.Fields) {
	f["reason"] = reason
	f["remote"] = c.RemoteAddr().String()
	obs.Warn("relay.reject", f)
	obs.GatewayRejectedTotal.WithLabelValues(reason).Inc()
	g.state.recordRejected()
	_ = c.Close()
}

func (g *gateway) handleRelayConn(c net.Conn) {
	if g.state.isClosing() {
		g.reject(c, "closing", obs.Fields{})
		return
	}
	if g.cfg.HandshakeTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout))
	}
	rd := bufio.NewReaderSize(c, maxHandshake)
	req, err := proto.ReadRelayRequest(rd)
	if err != nil {
		g.reject(c, "handshake", obs.Fields{"err": err.Error()})
		return
	}
	_ = c.SetReadDeadline(time.Time{})

	target := req.Addr()
	if !g.cfg.targetAllowed(req.Host) {
		g.reject(c, "not_allowed", obs.Fields{"target": target})
		return
	}
	if !g.limiter.Allow(target) {
		g.reject(c, "rate_limited", obs.Fields{"target": target})
		return
	}
	upstream, err := g.dialer.Dial("tcp", target)
	if err != nil {
		g.reject(c, "dial", obs.Fields{"target": target, "err": err.Error()})
		return
	}

	info := &relayInfo{id: uuid.NewString(), client: c, remote: c.RemoteAddr().String(), target: target, started: time.Now()}
	if err := g.state.addRelay(info); err != nil {
		_ = upstream.Close()
		g.reject(c, "register", obs.Fields{"target": target, "err": err.Error()})
		return
	}
	obs.Info("relay.established", obs.Fields{"id": info.id, "remote": info.remote, "target": target, "buffered": rd.Buffered()})

	client := &bufferedConn{Conn: c, r: rd}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); relay.Transfer(client, upstream, relay.Upstream) }()
	go func() { defer wg.Done(); relay.Transfer(upstream, client, relay.Downstream) }()
	wg.Wait()

	g.state.removeRelay(info.id)
	elapsed := time.Since(info.started)
	obs.RelayDurationSeconds.Observe(elapsed.Seconds())
	obs.Info("relay.closed", obs.Fields{"id": info.id, "target": target, "duration": elapsed.String()})
}

// runPruneLoop drops rate limiter buckets for targets without active relays.
func runPruneLoop(ctx context.Context, limiter *ratelimit.Limiter, state StateStore, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			active := map[string]bool{}
			for _, r := range state.relays() {
				active[r.Target] = true
			}
			limiter.Prune(active)
		}
	}
}

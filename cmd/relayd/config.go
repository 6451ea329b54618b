package main

import (
	"fmt"
	"net/netip"
	"time"
)

// Config holds all runtime configuration derived from flags.
type Config struct {
	ListenAddr       string
	MetricsAddr      string
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
	Allow            []string // CIDRs targets must fall in; empty allows all
	GlobalRate       int
	TargetRate       int
	Burst            int
	PruneInterval    time.Duration
	Debug            bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int

	allowNets []netip.Prefix
}

var cfg Config

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfg.ListenAddr, "listen", ":31415", "address accepting relay handshakes")
	f.StringVar(&cfg.MetricsAddr, "metrics", ":9100", "metrics, health and dashboard listen address (empty disables)")
	f.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", 10*time.Second, "time allowed for a client to send its relay line")
	f.DurationVar(&cfg.DialTimeout, "dial-timeout", 10*time.Second, "timeout dialing a relay target")
	f.StringSliceVar(&cfg.Allow, "allow", nil, "CIDR a relay target must be inside (repeatable; empty allows any IP or hostname)")
	f.IntVar(&cfg.GlobalRate, "global-rate", 0, "new relays per second across all targets (0 = unlimited)")
	f.IntVar(&cfg.TargetRate, "target-rate", 0, "new relays per second per target (0 = unlimited)")
	f.IntVar(&cfg.Burst, "burst", 10, "rate limiter burst size")
	f.DurationVar(&cfg.PruneInterval, "prune-interval", time.Minute, "interval for dropping idle per-target rate limiters")
	f.BoolVarP(&cfg.Debug, "debug", "d", false, "enable debug logs")
	f.StringVar(&cfg.RedisAddr, "redis", "", "redis address for the shared relay registry (empty = in-memory)")
	f.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database")
}

func (c *Config) parseAllow() error {
	c.allowNets = c.allowNets[:0]
	for _, s := range c.Allow {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return fmt.Errorf("invalid --allow %q: %w", s, err)
		}
		c.allowNets = append(c.allowNets, p.Masked())
	}
	return nil
}

// targetAllowed reports whether host may be relayed to. With an allow list
// only IP literals inside one of the prefixes pass.
func (c *Config) targetAllowed(host string) bool {
	if len(c.allowNets) == 0 {
		return true
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, p := range c.allowNets {
		if p.Contains(ip.Unmap()) {
			return true
		}
	}
	return false
}

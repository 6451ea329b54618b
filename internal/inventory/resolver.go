package inventory

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
)

// DefaultTelnetPlatforms are device families that only speak telnet.
var DefaultTelnetPlatforms = []string{"8519702"}

// Target is where a session should end up.
type Target struct {
	Name    string
	Address string
	// Telnet is set when the device family only supports telnet.
	Telnet bool
}

// Resolver turns a host argument into a device address.
type Resolver struct {
	Searcher        Searcher
	Cache           Cache
	TelnetPlatforms []string
}

// IsIP reports whether s is a literal IP address.
func IsIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// Resolve returns the address for host. IP literals are used as is and never
// hit the inventory.
func (r *Resolver) Resolve(ctx context.Context, host string) (Target, error) {
	if IsIP(host) {
		return Target{Name: host, Address: host}, nil
	}
	devices, err := r.search(ctx, host)
	if err != nil {
		return Target{}, err
	}
	d, err := Select(devices, host)
	if err != nil {
		return Target{}, err
	}
	if !IsIP(d.Address) {
		return Target{}, fmt.Errorf("%s: %w (got %q)", d.Name, ErrNoAddress, d.Address)
	}
	platforms := r.TelnetPlatforms
	if platforms == nil {
		platforms = DefaultTelnetPlatforms
	}
	return Target{Name: d.Name, Address: d.Address, Telnet: slices.Contains(platforms, d.Platform)}, nil
}

func (r *Resolver) search(ctx context.Context, host string) (Devices, error) {
	cache := r.Cache
	if cache == nil {
		cache = nopCache{}
	}
	if devices, ok := cache.Get(ctx, host); ok {
		return devices, nil
	}
	devices, err := r.Searcher.Search(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		cache.Put(ctx, host, devices)
	}
	return devices, nil
}

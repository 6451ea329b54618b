package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/matst80/spectroconnect/internal/inventory"
	"github.com/matst80/spectroconnect/internal/launcher"
	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/matst80/spectroconnect/internal/proto"
	"github.com/matst80/spectroconnect/internal/relay"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var errNoGateway = errors.New("No SpectroServer IP address provided.\n" +
	`Either add as argument (e.g. "-s 10.20.30.4") or configure as SPECTROSERVER_HOST environment variable.`)

type app struct {
	cfg      Config
	opts     options
	resolver *inventory.Resolver
	launcher launcher.SessionLauncher
	out      io.Writer
}

func newApp(c Config, o options, l launcher.SessionLauncher, out io.Writer) (*app, error) {
	if err := validate(c, o); err != nil {
		return nil, err
	}
	a := &app{cfg: c, opts: o, launcher: l, out: out}
	if c.Inventory.Enabled() {
		cache, err := inventory.NewCache(c.Cache)
		if err != nil {
			return nil, err
		}
		a.resolver = &inventory.Resolver{Searcher: inventory.NewClient(c.Inventory, nil), Cache: cache}
	} else {
		a.resolver = &inventory.Resolver{}
	}
	return a, nil
}

func validate(c Config, o options) error {
	if c.GatewayHost == "" {
		return errNoGateway
	}
	if !inventory.IsIP(c.GatewayHost) {
		return fmt.Errorf("%s is not a valid IP address", c.GatewayHost)
	}
	if !validPort(c.GatewayPort) {
		return fmt.Errorf("%d is not a valid gateway port", c.GatewayPort)
	}
	if o.port != 0 && !validPort(o.port) {
		return fmt.Errorf("%d is not a valid port", o.port)
	}
	if o.localPort != 0 && !validPort(o.localPort) {
		return fmt.Errorf("%d is not a valid port", o.localPort)
	}
	return nil
}

// plan is a resolved connection, ready to relay.
type plan struct {
	target   inventory.Target
	protocol launcher.Protocol
	port     int
	gateway  string
}

func (a *app) plan(ctx context.Context, host string) (plan, error) {
	if !a.cfg.Inventory.Enabled() && !inventory.IsIP(host) {
		return plan{}, fmt.Errorf("%s is not a valid IP address. Spectrum info is not provided so cannot perform lookup.", host)
	}
	target, err := a.resolver.Resolve(ctx, host)
	if err != nil {
		return plan{}, err
	}
	if target.Name != target.Address {
		obs.Info("device.found", obs.Fields{"name": target.Name, "address": target.Address})
	}
	p := plan{
		target:   target,
		protocol: launcher.SSH,
		gateway:  net.JoinHostPort(a.cfg.GatewayHost, strconv.Itoa(a.cfg.GatewayPort)),
	}
	if a.opts.telnet || target.Telnet {
		p.protocol = launcher.Telnet
	}
	p.port = a.opts.port
	if p.port == 0 {
		p.port = p.protocol.DefaultPort()
	}
	return p, nil
}

func (a *app) run(ctx context.Context, host string) error {
	p, err := a.plan(ctx, host)
	if err != nil {
		return err
	}
	if a.cfg.MetricsAddr != "" {
		go serveMetrics(a.cfg.MetricsAddr)
	}

	ln, err := relay.Listen(a.opts.localPort)
	if err != nil {
		return fmt.Errorf("create local socket: %w", err)
	}
	s := relay.NewSession(ln, p.gateway, proto.RelayRequest{Host: p.target.Address, Port: p.port})
	localHost, localPort := s.Addr()
	obs.Debug("session.created", obs.Fields{"session": s.ID, "addr": net.JoinHostPort(localHost, strconv.Itoa(localPort))})

	errc := make(chan error, 1)
	go func() { errc <- s.Establish() }()

	if a.opts.proxy {
		fmt.Fprintf(a.out, "Proxy socket details: %s:%d. Awaiting connection...\n", localHost, localPort)
		return <-errc
	}

	req := launcher.Request{Host: localHost, Port: localPort, Device: p.target.Address, Protocol: p.protocol, Username: a.cfg.Username}
	cmd, err := launcher.Start(a.launcher, req)
	if err != nil {
		relay.Shutdown(ln)
		<-errc
		return err
	}
	if err := cmd.Wait(); err != nil {
		obs.Debug("terminal.exit", obs.Fields{"err": err.Error()})
	}
	if st := s.State(); st == relay.Created || st == relay.Listening {
		// the terminal never connected; stop waiting for it
		relay.Shutdown(ln)
		<-errc
		return nil
	}
	return <-errc
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		obs.Error("metrics.server", obs.Fields{"err": err.Error(), "addr": addr})
	}
}

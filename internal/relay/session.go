package relay

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/spectroconnect/internal/obs"
	"github.com/matst80/spectroconnect/internal/proto"
)

// State is a step in a session's one-way lifecycle.
type State int32

const (
	Created State = iota
	Listening
	Connected
	Tunneling
	Relaying
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case Tunneling:
		return "tunneling"
	case Relaying:
		return "relaying"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Dialer opens the gateway connection. *net.Dialer satisfies it.
type Dialer interface {
	Dial(network, address string) (net.Conn, error)
}

// Listen binds the loopback listener a session accepts its one client on.
// Port 0 lets the OS pick.
func Listen(port int) (net.Listener, error) {
	return net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
}

// Session relays exactly one local client through a gateway to one target.
// None of its blocking steps time out; a session ends when either peer closes
// or the process exits.
type Session struct {
	ID       string
	Listener net.Listener
	Gateway  string // host:port of the gateway
	Target   proto.RelayRequest
	Dialer   Dialer

	state atomic.Int32
}

// NewSession builds a session over an already bound listener.
func NewSession(ln net.Listener, gateway string, target proto.RelayRequest) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Listener: ln,
		Gateway:  gateway,
		Target:   target,
		Dialer:   &net.Dialer{},
	}
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) enter(st State) {
	s.state.Store(int32(st))
	obs.Debug("session.state", obs.Fields{"session": s.ID, "state": st.String()})
}

// Addr is the local endpoint a terminal program should connect to.
func (s *Session) Addr() (host string, port int) {
	if a, ok := s.Listener.Addr().(*net.TCPAddr); ok {
		return a.IP.String(), a.Port
	}
	h, p, _ := net.SplitHostPort(s.Listener.Addr().String())
	port, _ = strconv.Atoi(p)
	return h, port
}

// Establish accepts one client, opens the gateway tunnel, sends the relay
// handshake and copies bytes both ways until the session is over. The only
// errors returned are from accept, gateway dial and handshake write; all three
// happen before any relaying and leave every socket closed.
func (s *Session) Establish() error {
	defer func() {
		if s.State() != Failed {
			s.enter(Closed)
		}
	}()
	s.enter(Listening)
	obs.Debug("session.listen", obs.Fields{"session": s.ID, "addr": s.Listener.Addr().String()})

	client, err := s.Listener.Accept()
	if err != nil {
		return s.fail("accept", fmt.Errorf("accept local client: %w", err), s.Listener)
	}
	s.enter(Connected)
	obs.Debug("session.accept", obs.Fields{"session": s.ID, "remote": client.RemoteAddr().String()})

	obs.Info("session.tunnel", obs.Fields{"session": s.ID, "target": s.Target.Addr(), "gateway": s.Gateway})
	gw, err := s.Dialer.Dial("tcp", s.Gateway)
	if err != nil {
		return s.fail("gateway_dial", fmt.Errorf("dial gateway %s: %w", s.Gateway, err), client, s.Listener)
	}
	if _, err := s.Target.WriteTo(gw); err != nil {
		return s.fail("handshake", fmt.Errorf("send relay handshake: %w", err), gw, client, s.Listener)
	}
	s.enter(Tunneling)
	obs.SessionsTotal.WithLabelValues("established").Inc()

	s.enter(Relaying)
	obs.ActiveRelays.Inc()
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); Transfer(gw, client, Downstream) }()
	go func() { defer wg.Done(); Transfer(client, gw, Upstream) }()
	wg.Wait()
	obs.ActiveRelays.Dec()
	obs.RelayDurationSeconds.Observe(time.Since(start).Seconds())

	obs.Debug("session.release", obs.Fields{"session": s.ID})
	Shutdown(gw)
	Shutdown(client)
	Shutdown(s.Listener)
	obs.Debug("session.done", obs.Fields{"session": s.ID, "duration": time.Since(start).String()})
	return nil
}

func (s *Session) fail(kind string, err error, open ...io.Closer) error {
	s.enter(Failed)
	obs.SessionsTotal.WithLabelValues(kind + "_failed").Inc()
	obs.ErrorsTotal.WithLabelValues(kind).Inc()
	for _, c := range open {
		Shutdown(c)
	}
	return err
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/matst80/spectroconnect/internal/inventory"
	"github.com/matst80/spectroconnect/internal/launcher"
)

const twoSwitches = `<model-response-list xmlns="http://www.ca.com/spectrum/restful/schema/response">
<model-responses>
<model mh="0x1"><attribute id="0x1006e">core-sw1</attribute><attribute id="0x12d7f">10.20.0.1</attribute><attribute id="0x12bef">8519702</attribute></model>
<model mh="0x2"><attribute id="0x1006e">core-sw10</attribute><attribute id="0x12d7f">10.20.0.10</attribute><attribute id="0x12bef">1</attribute></model>
</model-responses>
</model-response-list>`

const noAddress = `<model-response-list><model-responses>
<model mh="0x3"><attribute id="0x1006e">lab-sw</attribute><attribute id="0x12bef">1</attribute></model>
</model-responses></model-response-list>`

func inventoryServer(t *testing.T) inventory.Config {
	t.Helper()
	return inventoryServing(t, twoSwitches)
}

func inventoryServing(t *testing.T, body string) inventory.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return inventory.Config{URL: srv.URL, Username: "u", Password: "p"}
}

func testConfig() Config {
	return Config{GatewayHost: "10.1.1.1", GatewayPort: DefaultGatewayPort}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		opts options
		ok   bool
	}{
		{"ok", testConfig(), options{}, true},
		{"no gateway", Config{GatewayPort: DefaultGatewayPort}, options{}, false},
		{"gateway hostname", Config{GatewayHost: "spectro", GatewayPort: 1}, options{}, false},
		{"bad port", testConfig(), options{port: 70000}, false},
		{"bad local port", testConfig(), options{localPort: -1}, false},
	}
	for _, c := range cases {
		err := validate(c.cfg, c.opts)
		if (err == nil) != c.ok {
			t.Errorf("%s: validate = %v", c.name, err)
		}
	}
	if err := validate(Config{GatewayPort: 1}, options{}); !errors.Is(err, errNoGateway) {
		t.Errorf("expected errNoGateway, got %v", err)
	}
}

func TestPlanIPLiteral(t *testing.T) {
	a, err := newApp(testConfig(), options{}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.plan(context.Background(), "192.168.1.5")
	if err != nil {
		t.Fatal(err)
	}
	if p.target.Address != "192.168.1.5" || p.protocol != launcher.SSH || p.port != 22 || p.gateway != "10.1.1.1:31415" {
		t.Errorf("plan = %+v", p)
	}
}

func TestPlanNameWithoutInventory(t *testing.T) {
	a, err := newApp(testConfig(), options{}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.plan(context.Background(), "core-sw1"); err == nil || !strings.Contains(err.Error(), "cannot perform lookup") {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestPlanTelnetPlatform(t *testing.T) {
	c := testConfig()
	c.Inventory = inventoryServer(t)
	a, err := newApp(c, options{}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.plan(context.Background(), "core-sw1")
	if err != nil {
		t.Fatal(err)
	}
	if p.target.Address != "10.20.0.1" || p.protocol != launcher.Telnet || p.port != 23 {
		t.Errorf("plan = %+v", p)
	}
}

func TestPlanPortOverride(t *testing.T) {
	a, err := newApp(testConfig(), options{telnet: true, port: 2323}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.plan(context.Background(), "10.0.0.9")
	if err != nil {
		t.Fatal(err)
	}
	if p.protocol != launcher.Telnet || p.port != 2323 {
		t.Errorf("plan = %+v", p)
	}
}

func TestPlanAmbiguous(t *testing.T) {
	c := testConfig()
	c.Inventory = inventoryServer(t)
	a, err := newApp(c, options{}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.plan(context.Background(), "core-sw")
	var amb *inventory.AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	var buf bytes.Buffer
	reportError(&buf, err, false)
	want := "Error: Multiple device matches found:\ncore-sw1 (10.20.0.1)\ncore-sw10 (10.20.0.10)\n"
	if buf.String() != want {
		t.Errorf("report = %q, want %q", buf.String(), want)
	}
}

func TestPlanDeviceWithoutAddress(t *testing.T) {
	c := testConfig()
	c.Inventory = inventoryServing(t, noAddress)
	a, err := newApp(c, options{}, &launcher.Shell{}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.plan(context.Background(), "lab-sw")
	if !errors.Is(err, inventory.ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got plan %+v, %v", p, err)
	}
	var buf bytes.Buffer
	reportError(&buf, err, false)
	if !strings.HasPrefix(buf.String(), "Error: lab-sw: ") {
		t.Errorf("report = %q", buf.String())
	}
}

func TestReportErrorColor(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, errNoGateway, true)
	if !strings.HasPrefix(buf.String(), colorWarn) || !strings.HasSuffix(buf.String(), colorReset+"\n") {
		t.Errorf("expected colored output, got %q", buf.String())
	}
}

type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

// startGatewayMock swaps the case of everything after the relay line.
func startGatewayMock(t *testing.T) (host string, port int, lines <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	got := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		rd := bufio.NewReader(c)
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		got <- line
		buf := make([]byte, 64)
		for {
			n, err := rd.Read(buf)
			if n > 0 {
				out := bytes.Map(func(r rune) rune {
					if r >= 'a' && r <= 'z' {
						return r - 32
					}
					if r >= 'A' && r <= 'Z' {
						return r + 32
					}
					return r
				}, buf[:n])
				_, _ = c.Write(out)
			}
			if err != nil {
				return
			}
		}
	}()
	a := ln.Addr().(*net.TCPAddr)
	return a.IP.String(), a.Port, got
}

var proxyLine = regexp.MustCompile(`Proxy socket details: (127\.0\.0\.1:\d+)\.`)

func TestRunProxyMode(t *testing.T) {
	gwHost, gwPort, handshakes := startGatewayMock(t)
	out := make(lineWriter, 1)
	a, err := newApp(Config{GatewayHost: gwHost, GatewayPort: gwPort}, options{proxy: true, telnet: true}, &launcher.Shell{}, out)
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() { errc <- a.run(context.Background(), "10.0.0.9") }()

	var m []string
	select {
	case line := <-out:
		if m = proxyLine.FindStringSubmatch(line); m == nil {
			t.Fatalf("unexpected proxy line %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no proxy details printed")
	}
	c, err := net.Dial("tcp", m[1])
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 5)
	if _, err := io.ReadFull(c, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "HELLO" {
		t.Errorf("got %q", got)
	}
	if hs := <-handshakes; hs != "relay 10.0.0.9 23\r\n" {
		t.Errorf("handshake = %q", hs)
	}
	_ = c.Close()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after client closed")
	}
}

// exitLauncher starts a command that exits without ever connecting.
type exitLauncher struct{ path string }

func (l exitLauncher) Command(launcher.Request) (*exec.Cmd, error) { return exec.Command(l.path), nil }

func TestRunTerminalNeverConnects(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no `true` binary")
	}
	a, err := newApp(testConfig(), options{}, exitLauncher{path: path}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- a.run(context.Background(), "10.0.0.9") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run kept waiting for a terminal that exited")
	}
}

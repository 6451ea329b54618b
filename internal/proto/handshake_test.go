package proto

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestRelayRequestLine(t *testing.T) {
	var buf bytes.Buffer
	req := RelayRequest{Host: "192.168.1.5", Port: 22}
	if _, err := req.WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "relay 192.168.1.5 22\r\n"; got != want {
		t.Errorf("handshake = %q, want %q", got, want)
	}
	if got := req.Addr(); got != "192.168.1.5:22" {
		t.Errorf("addr = %q", got)
	}
}

func TestParseRelayRequest(t *testing.T) {
	cases := []struct {
		line string
		want RelayRequest
		ok   bool
	}{
		{"relay 10.0.0.9 23\r\n", RelayRequest{Host: "10.0.0.9", Port: 23}, true},
		{"relay core-sw1 22\n", RelayRequest{Host: "core-sw1", Port: 22}, true},
		{"relay 10.0.0.9\r\n", RelayRequest{}, false},
		{"connect 10.0.0.9 23\r\n", RelayRequest{}, false},
		{"relay 10.0.0.9 0\r\n", RelayRequest{}, false},
		{"relay 10.0.0.9 65536\r\n", RelayRequest{}, false},
		{"relay 10.0.0.9 ssh\r\n", RelayRequest{}, false},
		{"", RelayRequest{}, false},
	}
	for _, c := range cases {
		got, err := ParseRelayRequest(c.line)
		if c.ok {
			if err != nil {
				t.Errorf("%q: unexpected error %v", c.line, err)
			} else if got != c.want {
				t.Errorf("%q: got %+v want %+v", c.line, got, c.want)
			}
			continue
		}
		if !errors.Is(err, ErrBadHandshake) {
			t.Errorf("%q: expected ErrBadHandshake, got %v", c.line, err)
		}
	}
}

func TestReadRelayRequestKeepsTrailingBytes(t *testing.T) {
	rd := bufio.NewReader(strings.NewReader("relay 10.0.0.9 23\r\nSSH-2.0-client\r\n"))
	req, err := ReadRelayRequest(rd)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if req.Host != "10.0.0.9" || req.Port != 23 {
		t.Fatalf("unexpected request %+v", req)
	}
	rest, _ := io.ReadAll(rd)
	if string(rest) != "SSH-2.0-client\r\n" {
		t.Errorf("trailing bytes = %q", rest)
	}
}

func TestReadRelayRequestTooLong(t *testing.T) {
	rd := bufio.NewReaderSize(strings.NewReader("relay "+strings.Repeat("a", 64)+" 22\r\n"), 16)
	if _, err := ReadRelayRequest(rd); !errors.Is(err, ErrBadHandshake) {
		t.Fatalf("expected ErrBadHandshake, got %v", err)
	}
}

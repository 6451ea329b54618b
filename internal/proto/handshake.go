package proto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Verb opens the single command line a gateway understands.
const Verb = "relay"

// ErrBadHandshake is returned for lines that are not a well formed relay command.
var ErrBadHandshake = errors.New("malformed relay handshake")

// RelayRequest asks the gateway to splice the rest of the connection to Host:Port.
// It is sent once, as `relay <host> <port>\r\n`, and never acknowledged.
type RelayRequest struct {
	Host string
	Port int
}

// Addr is the dialable target address.
func (r RelayRequest) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Line renders the wire form, CRLF included.
func (r RelayRequest) Line() string {
	return fmt.Sprintf("%s %s %d\r\n", Verb, r.Host, r.Port)
}

// WriteTo writes the handshake line in one call.
func (r RelayRequest) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Line())
	return int64(n), err
}

// ParseRelayRequest parses one handshake line. A bare LF terminator is accepted.
func ParseRelayRequest(line string) (RelayRequest, error) {
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(fields) != 3 || fields[0] != Verb {
		return RelayRequest{}, fmt.Errorf("%w: %q", ErrBadHandshake, line)
	}
	port, err := strconv.Atoi(fields[2])
	if err != nil || port < 1 || port > 65535 {
		return RelayRequest{}, fmt.Errorf("%w: bad port %q", ErrBadHandshake, fields[2])
	}
	return RelayRequest{Host: fields[1], Port: port}, nil
}

// ReadRelayRequest reads the handshake line from rd. The line must fit in rd's
// buffer; anything after it stays buffered in rd for the relay.
func ReadRelayRequest(rd *bufio.Reader) (RelayRequest, error) {
	line, err := rd.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return RelayRequest{}, fmt.Errorf("%w: line too long", ErrBadHandshake)
		}
		return RelayRequest{}, err
	}
	return ParseRelayRequest(string(line))
}

package relay

import (
	"io"
	"net"

	"github.com/matst80/spectroconnect/internal/obs"
)

// ChunkSize is the most bytes moved per read.
const ChunkSize = 1024

// Direction labels one half of a relay in logs and metrics.
type Direction string

const (
	Upstream   Direction = "upstream"   // local client -> gateway
	Downstream Direction = "downstream" // gateway -> local client
)

type closeReader interface{ CloseRead() error }
type closeWriter interface{ CloseWrite() error }

// Shutdown stops both halves of c and closes it. Errors are dropped, so calling
// it on a connection that is already closed or broken is a no-op.
func Shutdown(c io.Closer) {
	if c == nil {
		return
	}
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	if cr, ok := c.(closeReader); ok {
		_ = cr.CloseRead()
	}
	_ = c.Close()
}

// Transfer copies src into dst until src reaches end of stream or either side
// fails, then shuts down both connections. Transport errors end the loop and
// are not reported; the paired Transfer in the other direction will see its
// own read fail once the sockets are closed.
func Transfer(src, dst net.Conn, dir Direction) {
	buf := make([]byte, ChunkSize)
	bytes := obs.RelayBytesTotal.WithLabelValues(string(dir))
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				obs.Debug("relay.write", obs.Fields{"direction": dir, "err": werr.Error()})
				break
			}
			total += int64(n)
			bytes.Add(float64(n))
		}
		if err != nil {
			if err != io.EOF {
				obs.Debug("relay.read", obs.Fields{"direction": dir, "err": err.Error()})
			}
			break
		}
		if n == 0 {
			break
		}
	}
	obs.Debug("relay.closing", obs.Fields{"direction": dir, "bytes": total, "src": addrOf(src), "dst": addrOf(dst)})
	Shutdown(src)
	Shutdown(dst)
}

func addrOf(c net.Conn) string {
	if a := c.LocalAddr(); a != nil {
		return a.String()
	}
	return ""
}

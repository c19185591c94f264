package proxy

import (
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// activity records the last time bytes moved through any conn of a relay.
type activity struct {
	last atomic.Int64
}

func (a *activity) touch() {
	a.last.Store(time.Now().UnixNano())
}

func (a *activity) since() time.Duration {
	return time.Since(time.Unix(0, a.last.Load()))
}

// idleConn applies a rolling deadline to every Read and Write. A read that
// expires while the other direction is still moving data is retried, so only
// a relay idle in both directions times out.
type idleConn struct {
	net.Conn
	timeout time.Duration
	act     *activity
}

// withIdleTimeout wraps both relay legs with a shared idle clock.
func withIdleTimeout(a, b net.Conn, timeout time.Duration) (net.Conn, net.Conn) {
	act := &activity{}
	act.touch()
	return &idleConn{Conn: a, timeout: timeout, act: act}, &idleConn{Conn: b, timeout: timeout, act: act}
}

func (c *idleConn) Read(p []byte) (int, error) {
	for {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := c.Conn.Read(p)
		if n > 0 {
			c.act.touch()
		}
		if n == 0 && errors.Is(err, os.ErrDeadlineExceeded) && c.act.since() < c.timeout {
			continue
		}
		return n, err
	}
}

func (c *idleConn) Write(p []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.act.touch()
	}
	return n, err
}

package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/txthinking/socks5"
)

// SOCKS5ProxyDialer tunnels outbound connections through an upstream SOCKS5
// server.
type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	user      string
	pass      string
}

func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, user, pass string) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{cfg: cfg, proxyAddr: proxyAddr, user: user, pass: pass}
}

// ProxyAddr returns the upstream proxy's host:port.
func (d *SOCKS5ProxyDialer) ProxyAddr() string {
	return d.proxyAddr
}

func (d *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, err)
	}

	client, err := socks5.NewClient(d.proxyAddr, d.user, d.pass, d.tcpTimeoutSeconds(ctx), 0)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy init: %w", err)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := client.Dial("tcp", address)
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		// The library dial cannot be interrupted; reap it in the background.
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("socks5 proxy dial %s %s: %w", network, address, ctx.Err())
	}
}

// tcpTimeoutSeconds converts the effective dial timeout into the whole
// seconds the library client takes. Zero means no timeout.
func (d *SOCKS5ProxyDialer) tcpTimeoutSeconds(ctx context.Context) int {
	timeout := d.cfg.DialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return 0
	}
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 1
	}
	return secs
}

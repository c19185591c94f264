package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	txsocks5 "github.com/txthinking/socks5"
	netproxy "golang.org/x/net/proxy"

	"github.com/die-net/socks5d/internal/dialer"
	"github.com/die-net/socks5d/internal/socks5"
	"github.com/die-net/socks5d/internal/testutil"
)

func startServer(t *testing.T, ctx context.Context, cfg Config) (string, <-chan error) {
	t.Helper()

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", ListenConfig{})
	if err != nil {
		t.Fatal(err)
	}
	context.AfterFunc(ctx, func() { _ = ln.Close() })

	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(dialer.Config{DialTimeout: 2 * time.Second})
	}
	cfg.Logger = zerolog.Nop()

	srv := NewServer(ctx, cfg)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	return ln.Addr().String(), done
}

func TestServerConnectDirect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	addr, _ := startServer(t, ctx, Config{NegotiationTimeout: time.Second})

	client, err := txsocks5.NewClient(addr, "", "", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	c, err := client.Dial("tcp", echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("hello"))
}

func TestServerConnectViaNetProxy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	_, port, err := net.SplitHostPort(echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	addr, _ := startServer(t, ctx, Config{
		Resolver: fakeResolver{"echo.test": {net.IPv4(127, 0, 0, 1)}},
	})

	d, err := netproxy.SOCKS5("tcp", addr, nil, netproxy.Direct)
	if err != nil {
		t.Fatal(err)
	}
	c, err := d.Dial("tcp", net.JoinHostPort("echo.test", port))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	testutil.AssertEcho(t, c, c, []byte("via domain"))
}

func TestServerReportsBoundAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	addr, _ := startServer(t, ctx, Config{})

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	dest, err := socks5.AddressFromNetAddr(echoLn.Addr())
	if err != nil {
		t.Fatal(err)
	}
	rep, err := socks5.ClientDial(c, dest)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Bind.Type != socks5.AddrIPv4 || rep.Bind.Host() != "127.0.0.1" || rep.Bind.Port == 0 {
		t.Fatalf("bind = %s (%s), want 127.0.0.1 with a port", rep.Bind, rep.Bind.Type)
	}

	testutil.AssertEcho(t, c, c, []byte("after reply"))
}

func TestServerConnectRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	closed := testutil.ClosedTCPAddr(t, ctx)
	addr, _ := startServer(t, ctx, Config{})

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ap, err := net.ResolveTCPAddr("tcp", closed)
	if err != nil {
		t.Fatal(err)
	}
	dest, err := socks5.AddressFromNetAddr(ap)
	if err != nil {
		t.Fatal(err)
	}

	rep, err := socks5.ClientDial(c, dest)
	if err == nil {
		t.Fatal("expected connect failure")
	}
	if rep.Status != socks5.StatusConnectionRefused {
		t.Fatalf("status = %s, want %s", rep.Status, socks5.StatusConnectionRefused)
	}
	if rep.Bind != socks5.IPv4Address(0, 0) {
		t.Fatalf("bind = %s, want 0.0.0.0:0", rep.Bind)
	}
}

func TestServerShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, done := startServer(t, ctx, Config{NegotiationTimeout: 5 * time.Second})

	// A client stuck mid-handshake must not keep Serve or its session alive.
	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Read(make([]byte, 1)); err == nil {
		t.Fatal("expected session conn to be closed")
	}
}

func TestListenTCPReusePort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := ListenConfig{ReusePort: true}
	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", cfg)
	if !ReusePortSupported {
		if err == nil {
			_ = ln.Close()
			t.Fatal("expected error without SO_REUSEPORT support")
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	ln2, err := ListenTCP(ctx, "tcp", ln.Addr().String(), cfg)
	if err != nil {
		t.Fatalf("second listener on %s: %v", ln.Addr(), err)
	}
	_ = ln2.Close()
}

func TestListenTCPAppliesKeepAlive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ka := net.KeepAliveConfig{Enable: true, Idle: 30 * time.Second, Interval: 10 * time.Second, Count: 2}
	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", ListenConfig{KeepAlive: ka})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	kl, ok := ln.(*KeepAliveListener)
	if !ok {
		t.Fatalf("listener type %T", ln)
	}
	if kl.KeepAliveConfig != ka {
		t.Fatalf("keepalive = %+v, want %+v", kl.KeepAliveConfig, ka)
	}

	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	accepted, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer accepted.Close()
	if _, ok := accepted.(*net.TCPConn); !ok {
		t.Fatalf("accepted %T, want *net.TCPConn", accepted)
	}
}

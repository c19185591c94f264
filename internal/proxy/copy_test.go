package proxy

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/die-net/socks5d/internal/testutil"
)

func TestCopyBidirectionalEcho(t *testing.T) {
	client, left := net.Pipe()
	right, upstream := net.Pipe()

	go func() {
		defer upstream.Close()
		_, _ = io.Copy(upstream, upstream)
	}()

	done := make(chan error, 1)
	go func() { done <- CopyBidirectional(context.Background(), left, right) }()

	testutil.AssertEcho(t, client, client, []byte("hello"))
	_ = client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not finish")
	}
}

func TestCopyBidirectionalFailFast(t *testing.T) {
	client, left := net.Pipe()
	right, upstream := net.Pipe()
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- CopyBidirectional(context.Background(), left, right) }()

	// Only one leg ends; the relay must still tear down both.
	_ = upstream.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay kept running with one leg closed")
	}

	if _, err := client.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("client read = %v, want EOF", err)
	}
}

func TestCopyBidirectionalContextCancel(t *testing.T) {
	client, left := net.Pipe()
	right, upstream := net.Pipe()
	defer client.Close()
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- CopyBidirectional(ctx, left, right) }()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("err = %v, want %v", err, context.Canceled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay ignored cancellation")
	}
}

func TestIdleConnKeepsBusyRelayAlive(t *testing.T) {
	client, left := net.Pipe()
	right, upstream := net.Pipe()
	defer client.Close()
	defer upstream.Close()

	l, r := withIdleTimeout(left, right, 100*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- CopyBidirectional(context.Background(), l, r) }()

	// Upstream streams to the client for longer than the idle timeout while
	// the client never sends anything.
	go func() {
		for i := 0; i < 6; i++ {
			if _, err := upstream.Write([]byte("tick")); err != nil {
				return
			}
			time.Sleep(40 * time.Millisecond)
		}
	}()

	buf := make([]byte, 4)
	for i := 0; i < 6; i++ {
		if _, err := io.ReadFull(client, buf); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	select {
	case err := <-done:
		if !isTimeout(err) {
			t.Fatalf("err = %v, want timeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle relay did not time out")
	}
}

package testutil

import (
	"context"
	"net"
	"testing"

	"golang.org/x/sync/errgroup"
)

// StartSingleAcceptServer runs handler on the first accepted connection. The
// returned func closes the listener and waits for handler to return.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	g.Go(func() error {
		c, err := ln.Accept()
		if err != nil {
			return nil
		}
		defer c.Close()
		handler(c)
		return nil
	})

	wait := func() {
		_ = ln.Close()
		_ = g.Wait()
	}

	return ln, wait
}

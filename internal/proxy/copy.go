package proxy

import (
	"context"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CopyBidirectional relays bytes between left and right until either
// direction ends, then closes both and returns that direction's error (nil for
// a clean EOF). The other direction is abandoned; a half-open relay is never
// kept alive. Canceling ctx ends the relay the same way.
func CopyBidirectional(ctx context.Context, left, right net.Conn) error {
	var (
		once  sync.Once
		first error
	)
	finish := func(err error) {
		once.Do(func() {
			first = err
			_ = left.Close()
			_ = right.Close()
		})
	}

	stop := context.AfterFunc(ctx, func() {
		finish(ctx.Err())
	})
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		finish(copyBuffered(right, left))
		return nil
	})
	g.Go(func() error {
		finish(copyBuffered(left, right))
		return nil
	})
	_ = g.Wait()

	return first
}

func copyBuffered(dst io.Writer, src io.Reader) error {
	buf := relayBuffers.Get()
	defer relayBuffers.Put(buf)

	_, err := io.CopyBuffer(dst, src, *buf)
	return err
}

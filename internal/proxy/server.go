package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/socks5"
)

// Server accepts SOCKS5 clients and runs one Session per connection.
type Server struct {
	ctx context.Context
	cfg Config
	log zerolog.Logger
}

func NewServer(ctx context.Context, cfg Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()
	return &Server{ctx: ctx, cfg: cfg, log: cfg.Logger}
}

// Serve accepts connections from ln until it is closed. It returns nil when
// the listener was closed because the server's context ended. Keepalive is
// applied by the listener; see ListenTCP.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(c)
	}
}

func (s *Server) handle(conn net.Conn) {
	sess := NewSession(conn, s.cfg)
	err := sess.Run(s.ctx)

	ev := sess.log.Debug()
	if err != nil && s.cfg.Verbose {
		ev = sess.log.Info()
	}
	ev.Err(err).
		Bool("malformed", socks5.IsMalformed(err)).
		Stringer("state", sess.State()).
		Msg("session closed")
}

package proxy

import (
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/socks5d/internal/dialer"
	"github.com/die-net/socks5d/internal/socks5"
)

type Config struct {
	// NegotiationTimeout bounds the method negotiation and the command
	// request read. Zero disables it.
	NegotiationTimeout time.Duration

	// DialTimeout bounds name resolution plus the outbound connect.
	DialTimeout time.Duration

	// IdleTimeout ends a relay after no bytes moved in either direction for
	// this long. Zero disables it.
	IdleTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	Dialer   dialer.Dialer
	Resolver socks5.Resolver

	Logger zerolog.Logger

	// Verbose logs per-session failures at info level instead of debug.
	Verbose bool
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = dialer.NewDirectDialer(dialer.Config{DialTimeout: c.DialTimeout, KeepAlive: c.KeepAlive})
	}
	if c.Resolver == nil {
		c.Resolver = net.DefaultResolver
	}
	return c
}

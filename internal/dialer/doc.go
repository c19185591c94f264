// Package dialer provides the outbound connect primitive used by socks5d
// sessions.
//
// A session resolves its destination itself and hands the resulting
// host:port to a Dialer, which either connects directly or tunnels through an
// upstream SOCKS5 proxy.
package dialer

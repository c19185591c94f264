package proxy

import (
	"errors"
	"net"
	"syscall"

	"github.com/die-net/socks5d/internal/socks5"
)

// statusForDialError picks the reply status that best describes why
// resolving or connecting to a destination failed.
func statusForDialError(err error) socks5.Status {
	var dnsErr *net.DNSError
	switch {
	case isTimeout(err):
		return socks5.StatusTTLExpired
	case errors.Is(err, socks5.ErrNoIPv4), errors.As(err, &dnsErr):
		return socks5.StatusHostUnreachable
	case errors.Is(err, syscall.ECONNREFUSED):
		return socks5.StatusConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH):
		return socks5.StatusHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		return socks5.StatusNetworkUnreachable
	default:
		return socks5.StatusNetworkUnreachable
	}
}

package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds a single outbound connect, including any upstream
	// proxy handshake.
	DialTimeout time.Duration

	KeepAlive net.KeepAliveConfig
}

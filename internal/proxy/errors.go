package proxy

import (
	"context"
	"errors"
	"net"
	"os"
)

var (
	ErrNoAcceptableMethod  = errors.New("proxy: client offered no acceptable auth method")
	ErrCommandNotSupported = errors.New("proxy: command not supported")
	ErrConnectFailed       = errors.New("proxy: connect to destination failed")
	ErrTimeout             = errors.New("proxy: session timed out")
	ErrInvalidTransition   = errors.New("proxy: invalid session state transition")
	ErrNoUpstream          = errors.New("proxy: relay without an upstream connection")
)

// isTimeout reports whether err is a deadline expiry from a conn or context.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Package proxy implements the socks5d server side: the per-connection
// session state machine, the bidirectional relay, and the listener plumbing
// that feeds accepted connections into sessions.
package proxy

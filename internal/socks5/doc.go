// Package socks5 implements the SOCKS5 (RFC 1928) wire format used by
// socks5d: method negotiation, CONNECT requests and replies, and the
// IPv4/domain/IPv6 address encoding they share.
//
// Every message type has a pure byte-level form (Append/Parse) and a stream
// form (Read*From) that reads exactly one message and never consumes bytes
// past its end, so the same connection can be handed to the relay afterwards.
//
// The package performs no network I/O of its own other than name resolution
// in Address.Resolve.
package socks5

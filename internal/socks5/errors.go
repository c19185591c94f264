package socks5

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed reports bytes that do not match the expected message shape.
	ErrMalformed = errors.New("socks5: malformed message")

	// ErrUnsupportedVersion reports a version byte other than Version.
	ErrUnsupportedVersion = errors.New("socks5: unsupported version")

	// ErrAddressType reports an unknown ATYP tag.
	ErrAddressType = errors.New("socks5: unsupported address type")

	// ErrDomainTooLong reports a domain name that cannot fit a one-byte length prefix.
	ErrDomainTooLong = errors.New("socks5: domain name longer than 255 bytes")

	// ErrNoIPv4 reports a domain that resolved to no IPv4 address.
	ErrNoIPv4 = errors.New("socks5: no IPv4 address found")
)

// msgReader reads one message field by field and remembers whether any byte
// of the message has been consumed yet.
type msgReader struct {
	r        io.Reader
	consumed bool
	scratch  [2]byte
}

func newMsgReader(r io.Reader) *msgReader {
	return &msgReader{r: r}
}

// full fills buf exactly, blocking until the bytes arrive. It never reads
// past len(buf).
func (m *msgReader) full(buf []byte, what string) error {
	n, err := io.ReadFull(m.r, buf)
	if err != nil {
		return m.fail(err, n, what)
	}
	m.consumed = true
	return nil
}

func (m *msgReader) byte(what string) (byte, error) {
	if err := m.full(m.scratch[:1], what); err != nil {
		return 0, err
	}
	return m.scratch[0], nil
}

func (m *msgReader) uint16(what string) (uint16, error) {
	if err := m.full(m.scratch[:2], what); err != nil {
		return 0, err
	}
	return uint16(m.scratch[0])<<8 | uint16(m.scratch[1]), nil
}

// fail converts a short read inside a message into ErrMalformed. A clean
// io.EOF before the first byte of a message is passed through wrapped so
// callers can tell a closed peer from a broken one.
func (m *msgReader) fail(err error, n int, what string) error {
	if (m.consumed || n > 0) && errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrMalformed, what)
	}
	return fmt.Errorf("read %s: %w", what, err)
}

// parse runs a stream reader over b and returns the unread remainder. Running
// out of bytes is always ErrMalformed here, since there is no more to wait for.
func parse[T any](b []byte, read func(io.Reader) (T, error)) (T, []byte, error) {
	var zero T
	br := bytes.NewReader(b)
	v, err := read(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: empty input", ErrMalformed)
		}
		return zero, b, err
	}
	return v, b[len(b)-br.Len():], nil
}

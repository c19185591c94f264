package socks5

import (
	"errors"
	"fmt"
	"io"
)

// Version is the SOCKS protocol version byte.
const Version byte = 0x05

// Method is an authentication method code offered during negotiation.
type Method byte

const (
	MethodNoAuth       Method = 0x00
	MethodGSSAPI       Method = 0x01
	MethodUserPass     Method = 0x02
	MethodIANAAssigned Method = 0x03
	MethodReserved     Method = 0x80
	MethodNoAcceptable Method = 0xFF
)

// ParseMethod maps a wire byte to a Method. Codes outside the known set are
// malformed.
func ParseMethod(b byte) (Method, error) {
	switch m := Method(b); m {
	case MethodNoAuth, MethodGSSAPI, MethodUserPass, MethodIANAAssigned, MethodReserved, MethodNoAcceptable:
		return m, nil
	default:
		return 0, fmt.Errorf("%w: unknown auth method %#x", ErrMalformed, b)
	}
}

func (m Method) String() string {
	switch m {
	case MethodNoAuth:
		return "no-auth"
	case MethodGSSAPI:
		return "gssapi"
	case MethodUserPass:
		return "username/password"
	case MethodIANAAssigned:
		return "iana-assigned"
	case MethodReserved:
		return "reserved"
	case MethodNoAcceptable:
		return "no-acceptable-methods"
	default:
		return fmt.Sprintf("method(%#x)", byte(m))
	}
}

// Command is the CMD byte of a request.
type Command byte

const (
	CmdConnect      Command = 0x01
	CmdBind         Command = 0x02
	CmdUDPAssociate Command = 0x03
)

// ParseCommand maps a wire byte to a Command.
func ParseCommand(b byte) (Command, error) {
	switch c := Command(b); c {
	case CmdConnect, CmdBind, CmdUDPAssociate:
		return c, nil
	default:
		return 0, fmt.Errorf("%w: unknown command %#x", ErrMalformed, b)
	}
}

func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "connect"
	case CmdBind:
		return "bind"
	case CmdUDPAssociate:
		return "udp-associate"
	default:
		return fmt.Sprintf("cmd(%#x)", byte(c))
	}
}

// Status is the REP byte of a reply.
type Status byte

const (
	StatusSucceeded Status = iota
	StatusGeneralFailure
	StatusNotAllowed
	StatusNetworkUnreachable
	StatusHostUnreachable
	StatusConnectionRefused
	StatusTTLExpired
	StatusCommandNotSupported
	StatusAddressTypeNotSupported
	StatusUnassigned
)

var statusText = [...]string{
	StatusSucceeded:               "succeeded",
	StatusGeneralFailure:          "general SOCKS server failure",
	StatusNotAllowed:              "connection not allowed by ruleset",
	StatusNetworkUnreachable:      "network unreachable",
	StatusHostUnreachable:         "host unreachable",
	StatusConnectionRefused:       "connection refused",
	StatusTTLExpired:              "TTL expired",
	StatusCommandNotSupported:     "command not supported",
	StatusAddressTypeNotSupported: "address type not supported",
	StatusUnassigned:              "unassigned",
}

// ParseStatus maps a wire byte to a Status.
func ParseStatus(b byte) (Status, error) {
	if int(b) >= len(statusText) {
		return 0, fmt.Errorf("%w: unknown reply status %#x", ErrMalformed, b)
	}
	return Status(b), nil
}

func (s Status) String() string {
	if int(s) < len(statusText) {
		return statusText[s]
	}
	return fmt.Sprintf("status(%#x)", byte(s))
}

// NegotiationRequest is the client's method offer.
//
//	+-----+----------+----------+
//	| VER | NMETHODS | METHODS  |
//	+-----+----------+----------+
//	|  1  |    1     | 1 to 255 |
type NegotiationRequest struct {
	Version byte
	Methods []Method
}

// Has reports whether m was offered.
func (r NegotiationRequest) Has(m Method) bool {
	for _, offered := range r.Methods {
		if offered == m {
			return true
		}
	}
	return false
}

// AppendBinary appends the wire form of r to b. NMETHODS is always
// len(r.Methods).
func (r NegotiationRequest) AppendBinary(b []byte) ([]byte, error) {
	if len(r.Methods) > 255 {
		return b, fmt.Errorf("%w: %d methods", ErrMalformed, len(r.Methods))
	}
	b = append(b, r.Version, byte(len(r.Methods)))
	for _, m := range r.Methods {
		b = append(b, byte(m))
	}
	return b, nil
}

// MarshalBinary returns the wire form of r.
func (r NegotiationRequest) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// ParseNegotiationRequest decodes a NegotiationRequest from the front of b.
func ParseNegotiationRequest(b []byte) (NegotiationRequest, []byte, error) {
	return parse(b, ReadNegotiationRequestFrom)
}

// ReadNegotiationRequestFrom reads VER, NMETHODS and exactly NMETHODS method
// bytes from r.
func ReadNegotiationRequestFrom(r io.Reader) (NegotiationRequest, error) {
	m := newMsgReader(r)

	ver, err := m.byte("version")
	if err != nil {
		return NegotiationRequest{}, err
	}
	n, err := m.byte("method count")
	if err != nil {
		return NegotiationRequest{}, err
	}
	raw := make([]byte, n)
	if err := m.full(raw, "methods"); err != nil {
		return NegotiationRequest{}, err
	}

	req := NegotiationRequest{Version: ver, Methods: make([]Method, 0, n)}
	for _, b := range raw {
		method, err := ParseMethod(b)
		if err != nil {
			return NegotiationRequest{}, err
		}
		req.Methods = append(req.Methods, method)
	}
	return req, nil
}

// NegotiationReply is the server's chosen method.
type NegotiationReply struct {
	Version byte
	Method  Method
}

// AppendBinary appends VER and METHOD to b.
func (r NegotiationReply) AppendBinary(b []byte) ([]byte, error) {
	return append(b, r.Version, byte(r.Method)), nil
}

// MarshalBinary returns the wire form of r.
func (r NegotiationReply) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// ReadNegotiationReplyFrom reads VER and METHOD from r.
func ReadNegotiationReplyFrom(r io.Reader) (NegotiationReply, error) {
	m := newMsgReader(r)
	ver, err := m.byte("version")
	if err != nil {
		return NegotiationReply{}, err
	}
	b, err := m.byte("method")
	if err != nil {
		return NegotiationReply{}, err
	}
	method, err := ParseMethod(b)
	if err != nil {
		return NegotiationReply{}, err
	}
	return NegotiationReply{Version: ver, Method: method}, nil
}

// Request is a client command request. RSV is carried as received and not
// validated.
//
//	+-----+-----+-------+------+----------+----------+
//	| VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
//	+-----+-----+-------+------+----------+----------+
//	|  1  |  1  | X'00' |  1   | Variable |    2     |
type Request struct {
	Version  byte
	Command  Command
	Reserved byte
	Dest     Address
}

// AppendBinary appends the wire form of r to b.
func (r Request) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, r.Version, byte(r.Command), r.Reserved)
	return r.Dest.AppendBinary(b)
}

// MarshalBinary returns the wire form of r.
func (r Request) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// ParseRequest decodes a Request from the front of b.
func ParseRequest(b []byte) (Request, []byte, error) {
	return parse(b, ReadRequestFrom)
}

// ReadRequestFrom reads one request from r. A version other than Version is
// rejected before the address is read. An unknown command or address type is
// reported after the header bytes have been consumed; the caller can still
// reply to the client before closing.
func ReadRequestFrom(r io.Reader) (Request, error) {
	m := newMsgReader(r)

	var hdr [3]byte
	if err := m.full(hdr[:], "request header"); err != nil {
		return Request{}, err
	}
	if hdr[0] != Version {
		return Request{}, fmt.Errorf("%w: %#x", ErrUnsupportedVersion, hdr[0])
	}
	cmd, err := ParseCommand(hdr[1])
	if err != nil {
		return Request{}, err
	}
	dest, err := readAddress(m)
	if err != nil {
		return Request{}, err
	}
	return Request{Version: hdr[0], Command: cmd, Reserved: hdr[2], Dest: dest}, nil
}

// Reply is the server's answer to a Request.
//
//	+-----+-----+-------+------+----------+----------+
//	| VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//	+-----+-----+-------+------+----------+----------+
//	|  1  |  1  | X'00' |  1   | Variable |    2     |
type Reply struct {
	Version  byte
	Status   Status
	Reserved byte
	Bind     Address
}

// NewReply returns a version-5 reply with the given status and bound address.
func NewReply(status Status, bind Address) Reply {
	return Reply{Version: Version, Status: status, Bind: bind}
}

// NewFailureReply returns a reply carrying status and the zero IPv4 address
// 0.0.0.0:0.
func NewFailureReply(status Status) Reply {
	return NewReply(status, IPv4Address(0, 0))
}

// AppendBinary appends the wire form of r to b.
func (r Reply) AppendBinary(b []byte) ([]byte, error) {
	b = append(b, r.Version, byte(r.Status), r.Reserved)
	return r.Bind.AppendBinary(b)
}

// MarshalBinary returns the wire form of r.
func (r Reply) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// ParseReply decodes a Reply from the front of b.
func ParseReply(b []byte) (Reply, []byte, error) {
	return parse(b, ReadReplyFrom)
}

// ReadReplyFrom reads one reply from r.
func ReadReplyFrom(r io.Reader) (Reply, error) {
	m := newMsgReader(r)

	var hdr [3]byte
	if err := m.full(hdr[:], "reply header"); err != nil {
		return Reply{}, err
	}
	status, err := ParseStatus(hdr[1])
	if err != nil {
		return Reply{}, err
	}
	bind, err := readAddress(m)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Version: hdr[0], Status: status, Reserved: hdr[2], Bind: bind}, nil
}

// IsMalformed reports whether err came from decoding bytes of the wrong shape
// rather than from the transport.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrAddressType)
}

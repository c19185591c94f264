package socks5

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"unicode/utf8"
)

// AddrType is the ATYP tag preceding an encoded address.
type AddrType byte

const (
	AddrIPv4   AddrType = 0x01
	AddrDomain AddrType = 0x03
	AddrIPv6   AddrType = 0x04
)

func (t AddrType) String() string {
	switch t {
	case AddrIPv4:
		return "ipv4"
	case AddrDomain:
		return "domain"
	case AddrIPv6:
		return "ipv6"
	default:
		return fmt.Sprintf("atyp(%#x)", byte(t))
	}
}

// Address is a destination or bound address as carried on the wire. Type
// selects which of IPv4, Domain or IPv6 is meaningful.
//
//	+------+----------+----------+
//	| ATYP | DST.ADDR | DST.PORT |
//	+------+----------+----------+
//	|  1   | Variable |    2     |
type Address struct {
	Type   AddrType
	IPv4   uint32
	Domain string
	IPv6   [8]uint16
	Port   uint16
}

// IPv4Address builds an IPv4 address from its big-endian 32-bit value.
func IPv4Address(ip uint32, port uint16) Address {
	return Address{Type: AddrIPv4, IPv4: ip, Port: port}
}

// DomainAddress builds a domain-name address. The name is validated when the
// address is encoded.
func DomainAddress(name string, port uint16) Address {
	return Address{Type: AddrDomain, Domain: name, Port: port}
}

// IPv6Address builds an IPv6 address from its eight 16-bit groups.
func IPv6Address(groups [8]uint16, port uint16) Address {
	return Address{Type: AddrIPv6, IPv6: groups, Port: port}
}

// AddressFromNetAddr converts a TCP or UDP endpoint into an Address, using
// the IPv4 form whenever the IP has one.
func AddressFromNetAddr(a net.Addr) (Address, error) {
	var ap netip.AddrPort
	switch v := a.(type) {
	case *net.TCPAddr:
		ap = v.AddrPort()
	case *net.UDPAddr:
		ap = v.AddrPort()
	default:
		parsed, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return Address{}, fmt.Errorf("parse address %q: %w", a.String(), err)
		}
		ap = parsed
	}
	return addressFromAddrPort(ap), nil
}

func addressFromAddrPort(ap netip.AddrPort) Address {
	ip := ap.Addr().Unmap()
	if ip.Is4() {
		b := ip.As4()
		return IPv4Address(binary.BigEndian.Uint32(b[:]), ap.Port())
	}
	b := ip.As16()
	var groups [8]uint16
	for i := range groups {
		groups[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return IPv6Address(groups, ap.Port())
}

// Host returns the address without the port, in the form net.Dial expects.
func (a Address) Host() string {
	switch a.Type {
	case AddrIPv4:
		return a.ipv4().String()
	case AddrIPv6:
		return a.ipv6().String()
	default:
		return a.Domain
	}
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.Port)))
}

func (a Address) ipv4() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.IPv4)
	return netip.AddrFrom4(b)
}

func (a Address) ipv6() netip.Addr {
	var b [16]byte
	for i, g := range a.IPv6 {
		binary.BigEndian.PutUint16(b[2*i:], g)
	}
	return netip.AddrFrom16(b)
}

// AppendBinary appends the ATYP-tagged encoding of a to b.
func (a Address) AppendBinary(b []byte) ([]byte, error) {
	switch a.Type {
	case AddrIPv4:
		b = append(b, byte(AddrIPv4))
		b = binary.BigEndian.AppendUint32(b, a.IPv4)
	case AddrDomain:
		if len(a.Domain) > 255 {
			return b, fmt.Errorf("%w: %d bytes", ErrDomainTooLong, len(a.Domain))
		}
		b = append(b, byte(AddrDomain), byte(len(a.Domain)))
		b = append(b, a.Domain...)
	case AddrIPv6:
		b = append(b, byte(AddrIPv6))
		for _, g := range a.IPv6 {
			b = binary.BigEndian.AppendUint16(b, g)
		}
	default:
		return b, fmt.Errorf("%w: %s", ErrAddressType, a.Type)
	}
	return binary.BigEndian.AppendUint16(b, a.Port), nil
}

// MarshalBinary returns the ATYP-tagged encoding of a.
func (a Address) MarshalBinary() ([]byte, error) {
	return a.AppendBinary(nil)
}

// ParseAddress decodes one ATYP-tagged address from the front of b and
// returns the remaining bytes.
func ParseAddress(b []byte) (Address, []byte, error) {
	return parse(b, ReadAddressFrom)
}

// ReadAddressFrom reads exactly one ATYP-tagged address from r.
func ReadAddressFrom(r io.Reader) (Address, error) {
	return readAddress(newMsgReader(r))
}

func readAddress(m *msgReader) (Address, error) {
	atyp, err := m.byte("address type")
	if err != nil {
		return Address{}, err
	}

	var a Address
	switch AddrType(atyp) {
	case AddrIPv4:
		var b [4]byte
		if err := m.full(b[:], "ipv4 address"); err != nil {
			return Address{}, err
		}
		a = IPv4Address(binary.BigEndian.Uint32(b[:]), 0)
	case AddrDomain:
		n, err := m.byte("domain length")
		if err != nil {
			return Address{}, err
		}
		name := make([]byte, n)
		if err := m.full(name, "domain name"); err != nil {
			return Address{}, err
		}
		if !utf8.Valid(name) {
			return Address{}, fmt.Errorf("%w: domain name is not valid UTF-8", ErrMalformed)
		}
		a = DomainAddress(string(name), 0)
	case AddrIPv6:
		var b [16]byte
		if err := m.full(b[:], "ipv6 address"); err != nil {
			return Address{}, err
		}
		var groups [8]uint16
		for i := range groups {
			groups[i] = binary.BigEndian.Uint16(b[2*i:])
		}
		a = IPv6Address(groups, 0)
	default:
		return Address{}, fmt.Errorf("%w: %#x", ErrAddressType, atyp)
	}

	if a.Port, err = m.uint16("port"); err != nil {
		return Address{}, err
	}
	return a, nil
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Resolve turns a into a connectable TCP endpoint. IP addresses convert
// directly; a domain is looked up through r and the first IPv4 result wins.
func (a Address) Resolve(ctx context.Context, r Resolver) (*net.TCPAddr, error) {
	switch a.Type {
	case AddrIPv4:
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(a.ipv4(), a.Port)), nil
	case AddrIPv6:
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(a.ipv6(), a.Port)), nil
	case AddrDomain:
		if r == nil {
			r = net.DefaultResolver
		}
		ips, err := r.LookupIP(ctx, "ip4", a.Domain)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", a.Domain, err)
		}
		for _, ip := range ips {
			if ip4 := ip.To4(); ip4 != nil {
				return &net.TCPAddr{IP: ip4, Port: int(a.Port)}, nil
			}
		}
		return nil, fmt.Errorf("resolve %s: %w", a.Domain, ErrNoIPv4)
	default:
		return nil, fmt.Errorf("%w: %s", ErrAddressType, a.Type)
	}
}

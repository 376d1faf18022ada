/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package address

import (
	"fmt"
	"net"

	libptc "github.com/loopwire/reactor/network/protocol"
)

// Family is the address variant tag.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
	FamilyUnix
)

// Address is a value-type sum over the endpoint shapes the core needs.
// Exactly one of ip/unix is meaningful, selected by Family.
type Address struct {
	family Family
	ip     net.IP
	port   int
	zone   string
	unix   string // Unix-domain path, possibly empty for an abstract socket
	proto  libptc.NetworkProtocol
}

// Unknown returns a zero-value Unknown address, the value used when the
// standard library hands back a net.Addr shape the core doesn't otherwise
// model (e.g. a pipe).
func Unknown() Address {
	return Address{family: FamilyUnknown}
}

// FromTCPAddr builds an Address from a resolved *net.TCPAddr.
func FromTCPAddr(a *net.TCPAddr, proto libptc.NetworkProtocol) Address {
	if a == nil {
		return Unknown()
	}
	return Address{family: familyOf(a.IP), ip: a.IP, port: a.Port, zone: a.Zone, proto: proto}
}

// FromUDPAddr builds an Address from a resolved *net.UDPAddr.
func FromUDPAddr(a *net.UDPAddr, proto libptc.NetworkProtocol) Address {
	if a == nil {
		return Unknown()
	}
	return Address{family: familyOf(a.IP), ip: a.IP, port: a.Port, zone: a.Zone, proto: proto}
}

// FromUnixAddr builds an Address from a resolved *net.UnixAddr.
func FromUnixAddr(a *net.UnixAddr, proto libptc.NetworkProtocol) Address {
	if a == nil {
		return Unknown()
	}
	return Address{family: FamilyUnix, unix: a.Name, proto: proto}
}

// FromNetAddr classifies a generic net.Addr (as returned by
// net.Conn.RemoteAddr/LocalAddr) into an Address.
func FromNetAddr(a net.Addr, proto libptc.NetworkProtocol) Address {
	switch v := a.(type) {
	case *net.TCPAddr:
		return FromTCPAddr(v, proto)
	case *net.UDPAddr:
		return FromUDPAddr(v, proto)
	case *net.UnixAddr:
		return FromUnixAddr(v, proto)
	default:
		return Unknown()
	}
}

// Resolve performs a host-name lookup (or literal parse) for the given
// network/address pair, mirroring net.ResolveTCPAddr/ResolveUDPAddr/
// ResolveUnixAddr dispatch by protocol.
func Resolve(proto libptc.NetworkProtocol, hostport string) (Address, error) {
	switch {
	case proto.IsUnix():
		a, err := net.ResolveUnixAddr(proto.String(), hostport)
		if err != nil {
			return Address{}, err
		}
		return FromUnixAddr(a, proto), nil
	case proto.IsStream():
		a, err := net.ResolveTCPAddr(proto.String(), hostport)
		if err != nil {
			return Address{}, err
		}
		return FromTCPAddr(a, proto), nil
	default:
		a, err := net.ResolveUDPAddr(proto.String(), hostport)
		if err != nil {
			return Address{}, err
		}
		return FromUDPAddr(a, proto), nil
	}
}

func familyOf(ip net.IP) Family {
	if ip == nil {
		return FamilyIPv4
	}
	if ip.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// Family returns the address variant tag.
func (a Address) Family() Family { return a.family }

// Protocol returns the NetworkProtocol the address was resolved for.
func (a Address) Protocol() libptc.NetworkProtocol { return a.proto }

// IP returns the IP component; zero value for Unix/Unknown addresses.
func (a Address) IP() net.IP { return a.ip }

// Port returns the port component; zero for Unix/Unknown addresses.
func (a Address) Port() int { return a.port }

// Path returns the Unix-domain socket path; empty for non-Unix addresses.
func (a Address) Path() string { return a.unix }

// String renders the address the way net.JoinHostPort/net.UnixAddr would.
func (a Address) String() string {
	switch a.family {
	case FamilyUnix:
		return a.unix
	case FamilyIPv4, FamilyIPv6:
		return net.JoinHostPort(a.ip.String(), fmt.Sprintf("%d", a.port))
	default:
		return "unknown"
	}
}

// NetAddr reconstructs a net.Addr suitable for passing back to the standard
// library (e.g. for sendto-style UDP replies).
func (a Address) NetAddr() net.Addr {
	switch a.family {
	case FamilyUnix:
		return &net.UnixAddr{Name: a.unix, Net: a.proto.String()}
	case FamilyIPv4, FamilyIPv6:
		if a.proto.IsDatagram() {
			return &net.UDPAddr{IP: a.ip, Port: a.port, Zone: a.zone}
		}
		return &net.TCPAddr{IP: a.ip, Port: a.port, Zone: a.zone}
	default:
		return nil
	}
}

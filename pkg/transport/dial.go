// Package transport dials instrument connections and frames the
// line-oriented protocol devices speak over them.
//
// Address disambiguation and the length-prefixed-framing shape are
// grounded on an equivalent pkg/transport elsewhere in this corpus's
// stack (client.go's dial logic, framing.go's reader/writer split),
// adapted from a 4-byte length-prefixed binary frame to a
// delimiter-terminated line frame plus a non-delimited shortcut match,
// per original_source's BaseDeviceProtocol (backend/devices/base.py).
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"time"
)

// ErrUnrecognizedAddress is returned by Dial when address is neither an
// IPv4[:port] pair nor a COM<digits> serial path.
var ErrUnrecognizedAddress = errors.New("transport: unrecognized device address")

var (
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}(:\d+)?$`)
	comPattern  = regexp.MustCompile(`^COM\d+$`)
)

// DefaultTCPPort is used when an IPv4 address carries no explicit port.
const DefaultTCPPort = 23

// Dial opens a connection to address, disambiguating IPv4[:port]
// (dialed over TCP) from COM<digits> (opened as a serial port) exactly
// as original_source's get_connection_method does via isIPAddress and
// a COM-prefix regex.
func Dial(address string, timeout time.Duration) (io.ReadWriteCloser, error) {
	switch {
	case ipv4Pattern.MatchString(address):
		addr := address
		if !hasPort(address) {
			addr = fmt.Sprintf("%s:%d", address, DefaultTCPPort)
		}
		return net.DialTimeout("tcp", addr, timeout)
	case comPattern.MatchString(address):
		return dialSerial(address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedAddress, address)
	}
}

func hasPort(address string) bool {
	_, _, err := net.SplitHostPort(address)
	return err == nil
}

package transport

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// dialSerial opens a COM<digits> address as a raw file handle. No
// corpus example repo carries a serial-port library (baud rate,
// parity, flow control configuration), so this is a deliberately
// minimal stdlib-only implementation: it maps COM<N> to the platform's
// conventional device path and opens it for read/write, with no port
// configuration beyond that. Real serial line discipline (baud, stop
// bits) is out of this repo's scope; see DESIGN.md.
func dialSerial(address string) (*os.File, error) {
	path, err := serialDevicePath(address)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR, 0)
}

func serialDevicePath(address string) (string, error) {
	n := strings.TrimPrefix(address, "COM")
	if n == "" {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedAddress, address)
	}
	if runtime.GOOS == "windows" {
		return `\\.\` + address, nil
	}
	return "/dev/ttyS" + n, nil
}

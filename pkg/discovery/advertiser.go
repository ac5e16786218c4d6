// Package discovery advertises the station's HTTP control API over
// mDNS so LAN tooling can find a running instrument station without a
// fixed address. Not present in original_source (the Python backend
// has no network discovery) — a supplemented feature. Grounded on
// github.com/enbility/zeroconf/v3's own Matter-commissioning
// advertiser, stripped down to the single zeroconf.Register call a
// stateless service advertisement needs (that advertiser layers a
// whole commissioning state machine over the call, which has no
// counterpart here).
package discovery

import (
	"fmt"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// ServiceType is the mDNS service type the station registers under.
const ServiceType = "_labstation._tcp"

// Domain is the mDNS domain advertisements are published into.
const Domain = "local."

// Advertiser publishes the station's control API on the local network.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers instanceName on port, with txt holding any
// extra key=value records (e.g. "version=1"). Call Shutdown to stop
// advertising.
func Advertise(instanceName string, port int, txt []string) (*Advertiser, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("discovery: list interfaces: %w", err)
	}
	server, err := zeroconf.Register(instanceName, ServiceType, Domain, port, txt, ifaces)
	if err != nil {
		return nil, fmt.Errorf("discovery: register %s: %w", instanceName, err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops advertising and withdraws the mDNS record.
func (a *Advertiser) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
	}
}

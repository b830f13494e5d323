//go:build linux

// Package osnet is the platform shim for adapter queries: on Linux the
// core queries the adapter's hardware address via netlink instead of
// parsing ifconfig/iwconfig output.
package osnet

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

// AdapterMAC returns the hardware address of the named interface as a
// colon-separated string, queried over netlink (nl80211's parent rtnetlink
// family) rather than shelling out to ifconfig.
func AdapterMAC(name string) (string, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return "", xerrs.Wrap(xerrs.DeviceUnavailable, err, "looking up adapter "+name)
	}
	addr := link.Attrs().HardwareAddr
	if len(addr) == 0 {
		return "", xerrs.New(xerrs.DeviceUnavailable, "adapter "+name+" has no hardware address")
	}
	return addr.String(), nil
}

// AdapterUp reports whether the named interface is currently administratively
// up, used by the capture package to sanity-check an adapter before opening
// pcap.
func AdapterUp(name string) (bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return false, xerrs.Wrap(xerrs.DeviceUnavailable, err, "looking up adapter "+name)
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

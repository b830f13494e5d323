//go:build !linux

package osnet

import (
	"net"

	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

// AdapterMAC falls back to the standard library on non-Linux platforms,
// where netlink is unavailable; the Windows build additionally requires
// Npcap for monitor-mode capture itself, which this shim does not touch.
func AdapterMAC(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", xerrs.Wrap(xerrs.DeviceUnavailable, err, "looking up adapter "+name)
	}
	if len(iface.HardwareAddr) == 0 {
		return "", xerrs.New(xerrs.DeviceUnavailable, "adapter "+name+" has no hardware address")
	}
	return iface.HardwareAddr.String(), nil
}

// AdapterUp reports whether the named interface is administratively up.
func AdapterUp(name string) (bool, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false, xerrs.Wrap(xerrs.DeviceUnavailable, err, "looking up adapter "+name)
	}
	return iface.Flags&net.FlagUp != 0, nil
}

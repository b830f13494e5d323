// Package capture implements the two pcap-backed capture device variants
// (MonitorDevice, WirelessPSPPluginDevice) that share the
// Open/Close/Send/StartReceiverThread/SetConnector contract.
package capture

import (
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"github.com/codedwrench/mondevtopromisc/internal/iface"
	"github.com/codedwrench/mondevtopromisc/internal/osnet"
	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

const (
	// SnapshotLength is the maximum number of bytes pcap captures per
	// packet, for both device variants.
	SnapshotLength = 65535
)

// Device is the capability set every capture device variant implements.
// Modeled as a tagged-variant interface rather than a class hierarchy.
type Device interface {
	// Open opens the named adapter in monitor mode, applying ssidFilter as
	// the set of SSID prefixes the device's Handler80211 will lock onto.
	Open(name string, ssidFilter []string) error
	// Close stops the receiver goroutine (if running), joins it, and
	// releases the pcap handle. Safe to call in any state.
	Close() error
	// StartReceiverThread spawns the single receive goroutine. May be
	// called only once between Open and Close.
	StartReceiverThread() error
	// SetConnector attaches the outgoing sink frames are forwarded to.
	SetConnector(sink iface.FrameSink)
	// Send injects an already-802.3 frame; the device converts it to
	// 802.11 internally before writing it to the adapter.
	Send(data []byte) error
	// BlackList adds mac to the device's denylist; frames transmitted by a
	// blacklisted MAC are dropped before conversion regardless of any
	// other filter (IPCapDevice.h's BlackList, absent from spec.md's
	// prose but present in the original interface).
	BlackList(mac uint64)
}

func openHandle(name string, snaplen int32, timeout time.Duration, log *logrus.Logger) (*pcap.Handle, error) {
	up, err := osnet.AdapterUp(name)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("adapter", name).Error("failed to query adapter state")
		}
		return nil, xerrs.Wrap(xerrs.DeviceUnavailable, err, "querying adapter "+name)
	}
	if !up {
		if log != nil {
			log.WithField("adapter", name).Error("adapter is administratively down")
		}
		return nil, xerrs.New(xerrs.DeviceUnavailable, "adapter "+name+" is administratively down")
	}

	if mac, err := osnet.AdapterMAC(name); err == nil && log != nil {
		log.WithField("adapter", name).WithField("mac", mac).Debug("opening adapter in monitor mode")
	}

	handle, err := pcap.OpenLive(name, snaplen, true, timeout)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("adapter", name).Error("failed to open adapter in monitor mode")
		}
		return nil, xerrs.Wrap(xerrs.DeviceUnavailable, err, "opening adapter "+name)
	}
	return handle, nil
}

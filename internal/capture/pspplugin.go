package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"github.com/codedwrench/mondevtopromisc/internal/handler80211"
	"github.com/codedwrench/mondevtopromisc/internal/iface"
	"github.com/codedwrench/mondevtopromisc/internal/packetconv"
	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

const pspPluginReadTimeout = 1 * time.Millisecond

// Stats is the periodic packet-count snapshot WirelessPSPPluginDevice
// publishes on its debug channel.
type Stats struct {
	PacketsSeen     uint64
	FramesForwarded uint64
	FramesDropped   uint64
}

// statsInterval matches ShowPacketStatistics's threshold from
// WirelessPSPPluginDevice.h: a snapshot every 1000 captured packets.
const statsInterval = 1000

// WirelessPSPPluginDevice is tailored for the host-side PSP plugin: it
// trusts the source-MAC filter as its primary acceptance gate (the plugin
// uses a fixed BSSID convention) and never ACKs, since the plugin's own
// driver already handles that at the OS level.
type WirelessPSPPluginDevice struct {
	log *logrus.Logger

	converter *packetconv.Converter
	handler   *handler80211.Handler80211

	mu              sync.Mutex
	handle          *pcap.Handle
	connector       iface.FrameSink
	sourceMACFilter uint64
	blacklist       map[uint64]bool

	running atomic.Bool
	stop    atomic.Bool
	wg      sync.WaitGroup

	packetsSeen     atomic.Uint64
	framesForwarded atomic.Uint64
	framesDropped   atomic.Uint64

	statsCh chan Stats
}

// NewWirelessPSPPluginDevice builds a WirelessPSPPluginDevice. statsCh may
// be nil if the caller doesn't want periodic statistics.
func NewWirelessPSPPluginDevice(log *logrus.Logger, statsCh chan Stats) *WirelessPSPPluginDevice {
	return &WirelessPSPPluginDevice{
		log:       log,
		converter: packetconv.NewConverter(true),
		handler:   handler80211.New(log, nil),
		blacklist: make(map[uint64]bool),
		statsCh:   statsCh,
	}
}

func (d *WirelessPSPPluginDevice) SetSourceMACToFilter(mac uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sourceMACFilter = mac
}

func (d *WirelessPSPPluginDevice) BlackList(mac uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blacklist[mac] = true
}

func (d *WirelessPSPPluginDevice) isBlacklisted(mac uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blacklist[mac]
}

func (d *WirelessPSPPluginDevice) SetConnector(sink iface.FrameSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connector = sink
}

// GetLockedBSSID returns the BSSID found via the filtered SSID, per
// WirelessPSPPluginDevice.h's namesake method.
func (d *WirelessPSPPluginDevice) GetLockedBSSID() uint64 { return d.handler.GetLockedBSSID() }

func (d *WirelessPSPPluginDevice) Open(name string, ssidFilter []string) error {
	d.handler.SetFilters(ssidFilter)
	handle, err := openHandle(name, SnapshotLength, pspPluginReadTimeout, d.log)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.handle = handle
	d.mu.Unlock()
	return nil
}

func (d *WirelessPSPPluginDevice) Close() error {
	d.stop.Store(true)
	d.mu.Lock()
	handle := d.handle
	d.mu.Unlock()
	if handle != nil {
		handle.Close()
	}
	d.wg.Wait()
	d.mu.Lock()
	d.handle = nil
	d.mu.Unlock()
	d.stop.Store(false)
	d.running.Store(false)
	return nil
}

func (d *WirelessPSPPluginDevice) StartReceiverThread() error {
	if !d.running.CompareAndSwap(false, true) {
		return xerrs.New(xerrs.Fatal, "receiver thread already running")
	}
	d.wg.Add(1)
	go d.receiveLoop()
	return nil
}

func (d *WirelessPSPPluginDevice) receiveLoop() {
	defer d.wg.Done()
	for !d.stop.Load() {
		d.mu.Lock()
		handle := d.handle
		d.mu.Unlock()
		if handle == nil {
			return
		}
		data, _, err := handle.ReadPacketData()
		if err != nil {
			if err == pcap.NextErrorTimeoutExpired {
				continue
			}
			return
		}
		count := d.packetsSeen.Add(1)
		d.handleFrame(data)
		if count%statsInterval == 0 {
			d.publishStats()
		}
	}
}

func (d *WirelessPSPPluginDevice) publishStats() {
	if d.statsCh == nil {
		return
	}
	snap := Stats{
		PacketsSeen:     d.packetsSeen.Load(),
		FramesForwarded: d.framesForwarded.Load(),
		FramesDropped:   d.framesDropped.Load(),
	}
	select {
	case d.statsCh <- snap:
	default:
		// Debug channel isn't being drained; drop rather than block the
		// receive loop.
	}
}

func (d *WirelessPSPPluginDevice) handleFrame(raw []byte) {
	dot11Off, err := d.converter.DataOffset(raw)
	if err != nil {
		d.framesDropped.Add(1)
		return
	}
	dot11 := raw[dot11Off:]

	if d.converter.IsBeacon(dot11) {
		var info packetconv.BeaconInfo
		if d.converter.FillWiFiInformation(dot11, &info) {
			d.handler.HandleBeacon(info)
		}
		return
	}

	if !d.converter.IsData(dot11) || d.converter.IsNullFunc(dot11) {
		return
	}

	srcMAC := transmitterMAC(dot11)
	if d.isBlacklisted(srcMAC) {
		d.framesDropped.Add(1)
		return
	}

	d.mu.Lock()
	macFilter := d.sourceMACFilter
	connector := d.connector
	d.mu.Unlock()

	// The plugin device trusts the fixed source-MAC convention as its
	// primary gate; the BSSID lock is secondary confirmation.
	if macFilter != 0 && srcMAC != macFilter {
		return
	}

	lock := d.handler.GetLock()
	if !lock.Locked || !d.converter.IsForBSSID(dot11, lock.BSSID) {
		return
	}
	d.handler.HandleDataFrame(lock.BSSID)

	eth := d.converter.ConvertPacketTo8023(raw)
	if eth == nil {
		d.framesDropped.Add(1)
		return
	}
	if connector != nil {
		if err := connector.Send(eth); err != nil && d.log != nil {
			d.log.WithError(err).Warn("failed to forward frame upstream")
		}
	}
	d.framesForwarded.Add(1)
}

// Send injects an already-802.3 frame, converting it to 802.11 using the
// currently-locked session's BSSID/MaxRate/Frequency.
func (d *WirelessPSPPluginDevice) Send(data []byte) error {
	lock := d.handler.GetLock()
	if !lock.Locked {
		return xerrs.New(xerrs.MalformedFrame, "cannot inject frame while unlocked")
	}
	wire := d.converter.ConvertPacketTo80211(data, lock.BSSID, lock.Frequency, lock.MaxRate)
	if wire == nil {
		return xerrs.New(xerrs.MalformedFrame, "failed to convert frame to 802.11")
	}
	d.mu.Lock()
	handle := d.handle
	d.mu.Unlock()
	if handle == nil {
		return xerrs.New(xerrs.DeviceUnavailable, "device not open")
	}
	return handle.WritePacketData(wire)
}

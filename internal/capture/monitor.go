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

const monitorReadTimeout = 10 * time.Millisecond

// MonitorDevice is the generic ad-hoc monitor-mode capture device.
// It locks onto a PSP/Vita session via its embedded Handler80211, filters
// data frames by BSSID and (optionally) source MAC, and can acknowledge
// accepted data frames to keep the handheld's link layer satisfied.
type MonitorDevice struct {
	log *logrus.Logger

	converter *packetconv.Converter
	handler   *handler80211.Handler80211

	mu                 sync.Mutex
	handle             *pcap.Handle
	connector          iface.FrameSink
	sourceMACFilter    uint64
	acknowledgePackets bool
	blacklist          map[uint64]bool

	running atomic.Bool
	stop    atomic.Bool
	wg      sync.WaitGroup

	packetsSeen     atomic.Uint64
	framesForwarded atomic.Uint64
	framesDropped   atomic.Uint64
}

// NewMonitorDevice builds a MonitorDevice. log may be nil.
func NewMonitorDevice(log *logrus.Logger) *MonitorDevice {
	return &MonitorDevice{
		log:       log,
		converter: packetconv.NewConverter(true),
		handler:   handler80211.New(log, nil),
		blacklist: make(map[uint64]bool),
	}
}

// SetSourceMACToFilter restricts accepted data frames to those transmitted
// by mac; 0 disables the filter.
func (d *MonitorDevice) SetSourceMACToFilter(mac uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sourceMACFilter = mac
}

// SetAcknowledgePackets enables or disables synthesizing an ACK for every
// accepted data frame.
func (d *MonitorDevice) SetAcknowledgePackets(ack bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acknowledgePackets = ack
}

func (d *MonitorDevice) BlackList(mac uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blacklist[mac] = true
}

func (d *MonitorDevice) isBlacklisted(mac uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blacklist[mac]
}

func (d *MonitorDevice) SetConnector(sink iface.FrameSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connector = sink
}

// GetLockedBSSID exposes the embedded Handler80211's lock for callers (and
// tests) that need it without reaching into internals.
func (d *MonitorDevice) GetLockedBSSID() uint64 { return d.handler.GetLockedBSSID() }

func (d *MonitorDevice) Open(name string, ssidFilter []string) error {
	d.handler.SetFilters(ssidFilter)
	handle, err := openHandle(name, SnapshotLength, monitorReadTimeout, d.log)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.handle = handle
	d.mu.Unlock()
	return nil
}

func (d *MonitorDevice) Close() error {
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

func (d *MonitorDevice) StartReceiverThread() error {
	if !d.running.CompareAndSwap(false, true) {
		return xerrs.New(xerrs.Fatal, "receiver thread already running")
	}
	d.wg.Add(1)
	go d.receiveLoop()
	return nil
}

func (d *MonitorDevice) receiveLoop() {
	defer d.wg.Done()
	var tick int
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
			// Handle was likely closed to unblock this read; exit quietly.
			return
		}
		d.packetsSeen.Add(1)
		d.handleFrame(data)

		tick++
		if tick%1000 == 0 {
			d.handler.CheckTimeout()
		}
	}
}

func (d *MonitorDevice) handleFrame(raw []byte) {
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

	lock := d.handler.GetLock()
	if !lock.Locked || !d.converter.IsForBSSID(dot11, lock.BSSID) {
		return
	}

	srcMAC := transmitterMAC(dot11)
	if d.isBlacklisted(srcMAC) {
		d.framesDropped.Add(1)
		return
	}

	d.mu.Lock()
	macFilter := d.sourceMACFilter
	ack := d.acknowledgePackets
	connector := d.connector
	d.mu.Unlock()

	if macFilter != 0 && srcMAC != macFilter {
		return
	}

	d.handler.HandleDataFrame(lock.BSSID)

	if ack {
		d.injectAck(dot11)
	}

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

func (d *MonitorDevice) injectAck(dot11 []byte) {
	receiver := dot11Address2(dot11)
	if receiver == nil {
		return
	}
	ack := d.converter.BuildAck(receiver)
	d.mu.Lock()
	handle := d.handle
	d.mu.Unlock()
	if handle == nil {
		return
	}
	if err := handle.WritePacketData(ack); err != nil && d.log != nil {
		d.log.WithError(err).Debug("failed to inject ACK")
	}
}

// Send injects an already-802.3 frame, converting it to 802.11 using the
// currently-locked session's BSSID/MaxRate/Frequency.
func (d *MonitorDevice) Send(data []byte) error {
	lock := d.handler.GetLock()
	if !lock.Locked {
		return xerrs.New(xerrs.MalformedFrame, "cannot inject frame while unlocked")
	}
	return d.SendWithInfo(data, lock.BSSID, lock.Frequency, lock.MaxRate)
}

// SendWithInfo injects data using the given session parameters, bypassing
// the handler's current lock (used by tests and by callers that already
// know the target session).
func (d *MonitorDevice) SendWithInfo(data []byte, bssid uint64, frequency uint16, maxRate uint8) error {
	wire := d.converter.ConvertPacketTo80211(data, bssid, frequency, maxRate)
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

func transmitterMAC(dot11 []byte) uint64 {
	b := dot11Address2(dot11)
	if b == nil {
		return 0
	}
	var v uint64
	for i := 0; i < 6; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func dot11Address2(dot11 []byte) []byte {
	if len(dot11) < 16 {
		return nil
	}
	return dot11[10:16]
}

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedwrench/mondevtopromisc/internal/packetconv"
)

type fakeSink struct {
	frames [][]byte
}

func (f *fakeSink) Send(data []byte) error {
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func newTestMonitorDevice() *MonitorDevice {
	d := NewMonitorDevice(nil)
	d.handler.SetFilters([]string{"PSP_"})
	return d
}

// minimalRadioTap is an 8-byte radiotap header with no optional fields
// present, just enough for the converter's length-skip logic.
var minimalRadioTap = []byte{0, 0, 8, 0, 0, 0, 0, 0}

func buildDataFrame(bssid, src, dst []byte, etherType uint16, payload []byte) []byte {
	frame := append([]byte{}, minimalRadioTap...)
	dot11 := make([]byte, dot11HeaderSize)
	dot11[0] = 0x08 // type=data, subtype=0
	copy(dot11[4:10], dst)
	copy(dot11[10:16], src)
	copy(dot11[16:22], bssid)
	frame = append(frame, dot11...)

	llc := []byte{0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00, byte(etherType >> 8), byte(etherType)}
	frame = append(frame, llc...)
	frame = append(frame, payload...)
	return frame
}

const dot11HeaderSize = 24

func TestFilterGateDropsWhileUnlocked(t *testing.T) {
	d := newTestMonitorDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	bssid := []byte{0x00, 0x16, 0xfe, 0xaa, 0xbb, 0xcc}
	src := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	frame := buildDataFrame(bssid, src, dst, 0x0800, []byte("hello"))

	d.handleFrame(frame)
	assert.Empty(t, sink.frames)
}

func TestLockStabilityDropsWrongBSSID(t *testing.T) {
	d := newTestMonitorDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	d.handler.HandleBeacon(packetconv.BeaconInfo{BSSID: 0xccbbaafe1600, SSID: "PSP_room", MaxRate: 11, Frequency: 2437})
	require.True(t, d.handler.IsLocked())

	wrongBSSID := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	src := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	frame := buildDataFrame(wrongBSSID, src, dst, 0x0800, []byte("hello"))

	d.handleFrame(frame)
	assert.Empty(t, sink.frames)
}

func TestLockedAcceptsMatchingBSSID(t *testing.T) {
	d := newTestMonitorDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	bssidBytes := []byte{0x00, 0x16, 0xfe, 0xaa, 0xbb, 0xcc}
	d.handler.HandleBeacon(packetconv.BeaconInfo{BSSID: 0xccbbaafe1600, SSID: "PSP_room", MaxRate: 11, Frequency: 2437})

	src := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	frame := buildDataFrame(bssidBytes, src, dst, 0x0800, []byte("hello"))

	d.handleFrame(frame)
	require.Len(t, sink.frames, 1)
	assert.Equal(t, dst, sink.frames[0][0:6])
	assert.Equal(t, src, sink.frames[0][6:12])
}

func TestSourceMACFilterDropsOthers(t *testing.T) {
	d := newTestMonitorDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	bssidBytes := []byte{0x00, 0x16, 0xfe, 0xaa, 0xbb, 0xcc}
	d.handler.HandleBeacon(packetconv.BeaconInfo{BSSID: 0xccbbaafe1600, SSID: "PSP_room"})

	allowed, err := packetconv.MacToInt("01:02:03:04:05:06")
	require.NoError(t, err)
	d.SetSourceMACToFilter(allowed)

	other := []byte{0x09, 0x08, 0x07, 0x06, 0x05, 0x04}
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	frame := buildDataFrame(bssidBytes, other, dst, 0x0800, []byte("hi"))
	d.handleFrame(frame)
	assert.Empty(t, sink.frames)

	allowedBytes := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	frame2 := buildDataFrame(bssidBytes, allowedBytes, dst, 0x0800, []byte("hi"))
	d.handleFrame(frame2)
	assert.Len(t, sink.frames, 1)
}

func TestBlacklistDropsFrames(t *testing.T) {
	d := newTestMonitorDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	bssidBytes := []byte{0x00, 0x16, 0xfe, 0xaa, 0xbb, 0xcc}
	d.handler.HandleBeacon(packetconv.BeaconInfo{BSSID: 0xccbbaafe1600, SSID: "PSP_room"})

	blocked, err := packetconv.MacToInt("01:02:03:04:05:06")
	require.NoError(t, err)
	d.BlackList(blocked)

	blockedBytes := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	frame := buildDataFrame(bssidBytes, blockedBytes, dst, 0x0800, []byte("hi"))
	d.handleFrame(frame)
	assert.Empty(t, sink.frames)
}

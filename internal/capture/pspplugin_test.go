package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedwrench/mondevtopromisc/internal/packetconv"
)

func newTestPSPPluginDevice() *WirelessPSPPluginDevice {
	d := NewWirelessPSPPluginDevice(nil, nil)
	d.handler.SetFilters([]string{"PSP_"})
	return d
}

func TestPSPPluginSourceMACIsPrimaryGate(t *testing.T) {
	d := newTestPSPPluginDevice()
	sink := &fakeSink{}
	d.SetConnector(sink)

	allowed, err := packetconv.MacToInt("01:02:03:04:05:06")
	require.NoError(t, err)
	d.SetSourceMACToFilter(allowed)

	bssid := []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	d.handler.HandleBeacon(packetconv.BeaconInfo{BSSID: 0xffeeddccbbaa, SSID: "PSP_room"})
	dst := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	other := []byte{0x09, 0x08, 0x07, 0x06, 0x05, 0x04}
	frame := buildDataFrame(bssid, other, dst, 0x0800, []byte("x"))
	d.handleFrame(frame)
	assert.Empty(t, sink.frames)

	allowedBytes := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	frame2 := buildDataFrame(bssid, allowedBytes, dst, 0x0800, []byte("x"))
	d.handleFrame(frame2)
	require.Len(t, sink.frames, 1)
}

func TestPSPPluginPublishesStats(t *testing.T) {
	statsCh := make(chan Stats, 1)
	d := NewWirelessPSPPluginDevice(nil, statsCh)
	d.packetsSeen.Store(999)
	d.framesForwarded.Store(10)
	d.publishStats()
	select {
	case s := <-statsCh:
		assert.Equal(t, uint64(999), s.PacketsSeen)
		assert.Equal(t, uint64(10), s.FramesForwarded)
	default:
		t.Fatal("expected stats on channel")
	}
}

// Package packetconv implements the 802.11 <-> 802.3 conversion and beacon
// parsing logic.
//
// All functions operate directly on raw capture buffers — a frame is just
// a []byte; the capture timestamp and length pcap reports with each packet
// are not passed to this package.
package packetconv

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BeaconInfo is the information recovered from a parsed beacon frame: the
// BSSID (48 bits, packed little-endian into a uint64 the way MacToInt does),
// the SSID, the highest supported rate code, and the channel's frequency in
// MHz.
type BeaconInfo struct {
	BSSID     uint64
	SSID      string
	MaxRate   uint8
	Frequency uint16
}

// RadioTapInfo is the subset of a parsed radiotap header the converter
// cares about: the header's self-reported length (used to find where the
// 802.11 header starts), which optional fields were present, and the two
// fields the bridge threads through to the locked session (rate, channel
// frequency).
type RadioTapInfo struct {
	Length    int
	Present   uint32
	HasRate   bool
	Rate      uint8
	HasChan   bool
	Frequency uint16
}

// 802.11 frame types (frame control byte 0, bits 2-3).
const (
	typeManagement uint8 = 0x00
	typeControl    uint8 = 0x01
	typeData       uint8 = 0x02
)

// Subtypes relevant to the bridge.
const (
	subtypeBeacon      uint8 = 0x08
	subtypeData        uint8 = 0x00
	subtypeQoSData     uint8 = 0x08
	subtypeNullFunc    uint8 = 0x04
	subtypeQoSNullFunc uint8 = 0x0C
	subtypeACK         uint8 = 0x0D
)

const (
	dot11HeaderLen = 24
	qosControlLen  = 2
	llcSnapLen     = 8
)

// LLC/SNAP header carrying an Ethernet EtherType inside an 802.11 data frame.
var llcSNAPPrefix = []byte{0xAA, 0xAA, 0x03, 0x00, 0x00, 0x00}

// Converter converts packets between monitor-mode (radiotap + 802.11) format
// and promiscuous (802.3 Ethernet) format.
type Converter struct {
	// radioTap indicates whether data handed to this converter carries a
	// radiotap header (and whether one should be synthesized on encode).
	radioTap bool
}

// NewConverter builds a Converter. radioTap controls whether incoming
// buffers are expected to start with a radiotap header, and whether one is
// prepended when converting back to 802.11.
func NewConverter(radioTap bool) *Converter {
	return &Converter{radioTap: radioTap}
}

// SetRadioTap toggles radiotap handling after construction.
func (c *Converter) SetRadioTap(radioTap bool) { c.radioTap = radioTap }

// dot11Start returns the offset of the 802.11 header within data, skipping
// a radiotap header if the converter is in radiotap mode.
func (c *Converter) dot11Start(data []byte) (int, error) {
	if !c.radioTap {
		return 0, nil
	}
	info, err := parseRadioTap(data)
	if err != nil {
		return 0, err
	}
	return info.Length, nil
}

// DataOffset returns the offset of the 802.11 header within a raw capture
// buffer, skipping the radiotap header if present. Capture devices use this
// to locate the start of the frame-control field before classifying a
// frame as a beacon/data/ack frame.
func (c *Converter) DataOffset(data []byte) (int, error) {
	return c.dot11Start(data)
}

// MacToInt parses a MAC address string (colon or hyphen separated,
// case-insensitive) into the 48-bit value packed little-endian the same way
// GetBSSID packs the Address-3 field: byte i of the textual address becomes
// bits [8i:8i+8) of the result.
func MacToInt(mac string) (uint64, error) {
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return 0, errors.Errorf("malformed MAC address %q", mac)
	}
	var v uint64
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return 0, errors.Wrapf(err, "malformed MAC octet %q", p)
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

func macBytesToInt(b []byte) uint64 {
	var v uint64
	for i := 0; i < 6 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func intToMacBytes(v uint64) []byte {
	b := make([]byte, 6)
	for i := 0; i < 6; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func frameControl(data []byte) (frameType, subtype, flags uint8, ok bool) {
	if len(data) < 2 {
		return 0, 0, 0, false
	}
	b0 := data[0]
	frameType = (b0 >> 2) & 0x3
	subtype = (b0 >> 4) & 0xF
	flags = data[1]
	return frameType, subtype, flags, true
}

// IsBeacon reports whether data (starting at the 802.11 header) is a
// management/beacon frame.
func (c *Converter) IsBeacon(data []byte) bool {
	t, s, _, ok := frameControl(data)
	return ok && t == typeManagement && s == subtypeBeacon
}

// IsData reports whether data is a data or QoS-data frame (subtype 0x00 or
// 0x08 under type=data; excludes null-function and other data subtypes).
func (c *Converter) IsData(data []byte) bool {
	t, s, _, ok := frameControl(data)
	return ok && t == typeData && (s == subtypeData || s == subtypeQoSData)
}

// IsQoS reports whether data is a QoS frame (subtype bit 3 set, type=data).
// Callers must skip an extra 2-byte QoS control field after the MAC header.
func (c *Converter) IsQoS(data []byte) bool {
	t, s, _, ok := frameControl(data)
	return ok && t == typeData && (s&0x08) != 0
}

// IsNullFunc reports whether data is a (QoS-)null-function frame: it carries
// no LLC/SNAP payload and must not be converted or ACKed.
func (c *Converter) IsNullFunc(data []byte) bool {
	t, s, _, ok := frameControl(data)
	return ok && t == typeData && (s == subtypeNullFunc || s == subtypeQoSNullFunc)
}

// GetBSSID returns the 48-bit BSSID carried in the Address-3 field of the
// 802.11 MAC header at the start of data.
func (c *Converter) GetBSSID(data []byte) uint64 {
	if len(data) < dot11HeaderLen {
		return 0
	}
	return macBytesToInt(data[16:22])
}

// IsForBSSID reports whether data's BSSID field equals bssid.
func (c *Converter) IsForBSSID(data []byte, bssid uint64) bool {
	return c.GetBSSID(data) == bssid
}

// addr1 / addr2 read the Address-1 / Address-2 fields of the 802.11 header.
func addr1(data []byte) []byte {
	if len(data) < dot11HeaderLen {
		return nil
	}
	return data[4:10]
}

func addr2(data []byte) []byte {
	if len(data) < dot11HeaderLen {
		return nil
	}
	return data[10:16]
}

func toFromDS(data []byte) (toDS, fromDS bool) {
	if len(data) < 2 {
		return false, false
	}
	flags := data[1]
	return flags&0x01 != 0, flags&0x02 != 0
}

package packetconv

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

// radiotapFieldInfo mirrors the per-field (alignment, size) table from the
// radiotap spec (http://www.radiotap.org/) used to walk present bits in
// order. Index i corresponds to present-bitmap bit i.
type radiotapFieldInfo struct {
	alignment int
	size      int
}

var radiotapFields = []radiotapFieldInfo{
	{8, 8}, // 0 TSFT
	{1, 1}, // 1 Flags
	{1, 1}, // 2 Rate
	{2, 4}, // 3 Channel (frequency + flags)
	{2, 2}, // 4 FHSS
	{1, 1}, // 5 dBm Antenna Signal
	{1, 1}, // 6 dBm Antenna Noise
	{2, 2}, // 7 Lock Quality
	{2, 2}, // 8 TX Attenuation
	{2, 2}, // 9 dB TX Attenuation
	{1, 1}, // 10 dBm TX Power
	{1, 1}, // 11 Antenna
	{1, 1}, // 12 dB Antenna Signal
	{1, 1}, // 13 dB Antenna Noise
}

const (
	radiotapBitRate    = 2
	radiotapBitChannel = 3
)

// parseRadioTap walks the radiotap header at the start of data and returns
// its self-reported length plus the rate/frequency fields the bridge needs.
func parseRadioTap(data []byte) (RadioTapInfo, error) {
	if len(data) < 8 {
		return RadioTapInfo{}, errors.New("radiotap header shorter than 8 bytes")
	}
	length := int(binary.LittleEndian.Uint16(data[2:4]))
	if length < 8 || len(data) < length {
		return RadioTapInfo{}, errors.New("radiotap header length out of range")
	}

	present := binary.LittleEndian.Uint32(data[4:8])
	fieldsStart := 8
	// Extended presence words: if bit 31 is set, another 4-byte present
	// word follows immediately, and so on.
	word := present
	for word&0x80000000 != 0 {
		if len(data) < fieldsStart+4 {
			return RadioTapInfo{}, errors.New("radiotap header truncated in extended present words")
		}
		word = binary.LittleEndian.Uint32(data[fieldsStart : fieldsStart+4])
		fieldsStart += 4
	}

	info := RadioTapInfo{Length: length, Present: present}
	fields := data[fieldsStart:length]

	offset := 0
	for i, fi := range radiotapFields {
		if present&(1<<uint(i)) == 0 {
			continue
		}
		if rem := offset % fi.alignment; rem != 0 {
			offset += fi.alignment - rem
		}
		if offset+fi.size > len(fields) {
			break
		}
		switch i {
		case radiotapBitRate:
			info.HasRate = true
			info.Rate = fields[offset]
		case radiotapBitChannel:
			info.HasChan = true
			info.Frequency = binary.LittleEndian.Uint16(fields[offset:])
		}
		offset += fi.size
	}
	return info, nil
}

// buildRadioTapHeader synthesizes a radiotap header carrying the Rate and
// Channel fields for a downstream frame, via gopacket/layers' RadioTap
// layer.
func buildRadioTapHeader(frequency uint16, maxRate uint8) ([]byte, error) {
	rt := &layers.RadioTap{
		Present:          layers.RadioTapPresentRate | layers.RadioTapPresentChannel,
		Rate:             layers.RadioTapRate(maxRate),
		ChannelFrequency: layers.RadioTapChannelFrequency(frequency),
		ChannelFlags:     channelFlagsFor(frequency),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := rt.SerializeTo(buf, gopacket.SerializeOptions{FixLengths: true}); err != nil {
		return nil, errors.Wrap(err, "failed to serialize radiotap header")
	}
	return buf.Bytes(), nil
}

// Channel flag bit positions per http://www.radiotap.org/defined-fields/Channel.
const (
	channelFlags2GHz layers.RadioTapChannelFlags = 0x0080
	channelFlags5GHz layers.RadioTapChannelFlags = 0x0100
)

func channelFlagsFor(frequency uint16) layers.RadioTapChannelFlags {
	if frequency >= 5000 {
		return channelFlags5GHz
	}
	return channelFlags2GHz
}

// ConvertChannelToFrequency converts an 802.11 channel number to its center
// frequency in MHz. Returns -1 for channels outside the known 2.4/5 GHz
// ranges.
func ConvertChannelToFrequency(channel int) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2407 + 5*channel
	case channel >= 36 && channel <= 165:
		return 5000 + 5*channel
	default:
		return -1
	}
}

package packetconv

// ConvertPacketTo8023 converts a monitor-mode data frame (radiotap, if the
// converter is in radiotap mode, followed by an 802.11 data header, a
// QoS control field if present, and an LLC/SNAP shim) into an 802.3
// Ethernet frame. Returns nil on any structural mismatch.
func (c *Converter) ConvertPacketTo8023(data []byte) []byte {
	dot11Off, err := c.dot11Start(data)
	if err != nil {
		return nil
	}
	dot11 := data[dot11Off:]
	if !c.IsData(dot11) {
		return nil
	}

	macLen := dot11HeaderLen
	if c.IsQoS(dot11) {
		macLen += qosControlLen
	}
	if len(dot11) < macLen+llcSnapLen {
		return nil
	}

	llc := dot11[macLen : macLen+llcSnapLen]
	etherType := llc[6:8]
	payload := dot11[macLen+llcSnapLen:]

	toDS, fromDS := toFromDS(dot11)
	var dst, src []byte
	switch {
	case !toDS && !fromDS: // ad-hoc / IBSS
		dst, src = addr1(dot11), addr2(dot11)
	case !toDS && fromDS: // from an access point
		dst, src = addr1(dot11), dot11[16:22]
	case toDS && !fromDS: // to an access point
		dst, src = dot11[16:22], addr2(dot11)
	default: // WDS, 4-address frames are out of scope
		return nil
	}
	if dst == nil || src == nil {
		return nil
	}

	out := make([]byte, 0, 12+2+len(payload))
	out = append(out, dst...)
	out = append(out, src...)
	out = append(out, etherType...)
	out = append(out, payload...)
	return out
}

// ConvertPacketTo80211 converts an 802.3 Ethernet frame into a monitor-mode
// frame addressed to bssid, carrying frequency and maxRate in its radiotap
// header (if the converter is in radiotap mode).
func (c *Converter) ConvertPacketTo80211(data []byte, bssid uint64, frequency uint16, maxRate uint8) []byte {
	if len(data) < 14 {
		return nil
	}
	dst := data[0:6]
	src := data[6:12]
	etherType := data[12:14]
	payload := data[14:]

	var out []byte
	if c.radioTap {
		rt, err := buildRadioTapHeader(frequency, maxRate)
		if err != nil {
			return nil
		}
		out = append(out, rt...)
	}

	header := make([]byte, dot11HeaderLen)
	header[0] = (0 << 4) | (typeData << 2) // subtype 0 (plain data), type=data
	header[1] = 0                          // ToDS=0, FromDS=0: ad-hoc
	// Duration (2-13) left zero.
	copy(header[4:10], dst)
	copy(header[10:16], src)
	copy(header[16:22], intToMacBytes(bssid))
	// SequenceControl (22-23) left zero.

	llc := make([]byte, llcSnapLen)
	copy(llc, llcSNAPPrefix)
	copy(llc[6:8], etherType)

	out = append(out, header...)
	out = append(out, llc...)
	out = append(out, payload...)
	return out
}

// BuildAck synthesizes a standards-compliant 802.11 ACK frame addressed to
// receiver (the transmitter MAC of the frame being acknowledged). Duration
// is left at 0 rather than computed from a link-rate table, since correct
// ACK duration is chipset-dependent and no single value is authoritative.
func (c *Converter) BuildAck(receiver []byte) []byte {
	var out []byte
	if c.radioTap {
		if rt, err := buildRadioTapHeader(0, 0); err == nil {
			out = append(out, rt...)
		}
	}
	ack := make([]byte, 10)
	ack[0] = (subtypeACK << 4) | (typeControl << 2)
	// Duration (2-3) left zero.
	copy(ack[4:10], receiver)
	return append(out, ack...)
}

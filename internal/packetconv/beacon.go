package packetconv

const (
	// beaconFixedParamsLen is the 12-byte Timestamp(8)+Interval(2)+
	// Capability(2) block at the start of a beacon management body.
	beaconFixedParamsLen = 12
	beaconTagsStart      = dot11HeaderLen + beaconFixedParamsLen // 36

	tagSSID       = 0
	tagRates      = 1
	tagDSParamSet = 3
)

// taggedParam is one (id, length, value) tuple from a beacon's tagged
// parameters region.
type taggedParam struct {
	id    uint8
	value []byte
}

// walkTags walks the tagged-parameters region of a beacon/probe body
// starting at beaconTagsStart, the same linear id/length/value layout the
// teacher walks by hand in server/packet.go's parseProbeReq (there, over a
// probe request's single SSID tag; here, over the full chain a beacon
// carries).
func walkTags(data []byte) []taggedParam {
	var tags []taggedParam
	i := beaconTagsStart
	for i+2 <= len(data) {
		id := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			break
		}
		tags = append(tags, taggedParam{id: id, value: data[i : i+length]})
		i += length
	}
	return tags
}

func findTag(tags []taggedParam, id uint8) ([]byte, bool) {
	for _, t := range tags {
		if t.id == id {
			return t.value, true
		}
	}
	return nil, false
}

// GetBeaconSSID returns the SSID carried in a beacon's tag-0 information
// element, or "" if the tag is missing or empty.
func (c *Converter) GetBeaconSSID(data []byte) string {
	tags := walkTags(data)
	if ssid, ok := findTag(tags, tagSSID); ok && len(ssid) > 0 {
		return string(ssid)
	}
	return ""
}

// FillWiFiInformation extracts BSSID, SSID, MaxRate, and Frequency from a
// beacon frame into out. Returns false if the beacon is too short to
// contain the MAC header and the fixed parameters, i.e. structurally
// malformed.
func (c *Converter) FillWiFiInformation(data []byte, out *BeaconInfo) bool {
	if len(data) < beaconTagsStart {
		return false
	}
	out.BSSID = c.GetBSSID(data)
	out.SSID = c.GetBeaconSSID(data)

	tags := walkTags(data)
	if rates, ok := findTag(tags, tagRates); ok && len(rates) > 0 {
		out.MaxRate = rates[len(rates)-1] & 0x7F
	}
	if ds, ok := findTag(tags, tagDSParamSet); ok && len(ds) > 0 {
		if freq := ConvertChannelToFrequency(int(ds[0])); freq > 0 {
			out.Frequency = uint16(freq)
		}
	}
	return true
}

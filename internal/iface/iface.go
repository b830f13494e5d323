// Package iface holds the single interface the capture device and the
// XLink Kai connection use to hand frames to each other.
//
// Both sides of that bridge need to call into the other without either
// package importing the other, so the shared contract lives here instead.
package iface

// FrameSink accepts a single already-converted frame. A capture device's
// FrameSink is an XLinkKaiConnection (receives 802.3 frames to tunnel
// upstream); an XLinkKaiConnection's FrameSink is a capture device
// (receives 802.3 frames to convert and inject downstream).
type FrameSink interface {
	Send(data []byte) error
}

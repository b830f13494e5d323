package xlink

import (
	"fmt"
	"strings"
)

// Outgoing tag builders. The wire format is a semicolon-terminated tag
// string, with a raw payload appended for e;e; frames.
func tagConnect(user, version string) []byte {
	return []byte(fmt.Sprintf("connect;%s;%s;", user, version))
}

func tagEthernet(frame []byte) []byte {
	out := make([]byte, 0, len("e;e;")+len(frame))
	out = append(out, "e;e;"...)
	out = append(out, frame...)
	return out
}

func tagKeepAlive() []byte { return []byte("e;keepalive;") }

func tagChat(msg string) []byte { return []byte(fmt.Sprintf("e;chat;%s;", msg)) }

func tagDisconnect() []byte { return []byte("disconnect;disconnect;") }

// tagInfo announces the bridge's name/version right after the handshake
// completes. This is a real XLink Kai wire tag the distilled spec didn't
// list; unrecognized by older Kai engines, which silently ignore it.
func tagInfo(name, version string) []byte {
	return []byte(fmt.Sprintf("e;info;%s;%s;", name, version))
}

// incoming is the parsed shape of a datagram received from XLink Kai.
type incoming struct {
	kind incomingKind
	body []byte
}

type incomingKind int

const (
	incomingUnknown incomingKind = iota
	incomingConnected
	incomingKeepAlive
	incomingEthernet
	incomingChat
	incomingDisconnect
)

// parseIncoming classifies a received datagram by its tag prefix. Order
// matters: "e;e;" and "e;chat;" must be checked before a bare "e;" would
// ever be (there is no bare "e;" tag, but specificity first avoids any
// future ambiguity).
func parseIncoming(data []byte) incoming {
	s := string(data)
	switch {
	case strings.HasPrefix(s, "connected;"):
		return incoming{kind: incomingConnected, body: data}
	case strings.HasPrefix(s, "e;e;"):
		return incoming{kind: incomingEthernet, body: data[len("e;e;"):]}
	case strings.HasPrefix(s, "e;chat;"):
		rest := strings.TrimSuffix(s[len("e;chat;"):], ";")
		return incoming{kind: incomingChat, body: []byte(rest)}
	case strings.HasPrefix(s, "keepalive;") || strings.HasPrefix(s, "e;keepalive;"):
		return incoming{kind: incomingKeepAlive}
	case strings.HasPrefix(s, "disconnect;"):
		return incoming{kind: incomingDisconnect, body: data}
	default:
		return incoming{kind: incomingUnknown, body: data}
	}
}

package xlink

import (
	iconv "gopkg.in/iconv.v1"
)

// legacyChatCodepage is the codepage older Windows XLink Kai engines send
// chat text in.
const legacyChatCodepage = "cp1252"

// normalizeChatText converts raw from legacyChatCodepage to UTF-8. On any
// iconv failure it falls back to returning the raw text unmodified rather
// than dropping the chat message.
func normalizeChatText(raw []byte) string {
	cd, err := iconv.Open("utf-8", legacyChatCodepage)
	if err != nil {
		return string(raw)
	}
	defer cd.Close()

	converted := cd.ConvString(string(raw))
	if converted == "" {
		return string(raw)
	}
	return converted
}

//go:build !linux

package xlink

import "net"

// sendBroadcast on non-Linux platforms relies on the Go runtime's default
// socket options, which already permit broadcast writes on Windows and
// Darwin without an explicit SO_BROADCAST setsockopt call.
func (c *Connection) sendBroadcast(to *net.UDPAddr, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.WriteToUDP(payload, to)
	return err
}

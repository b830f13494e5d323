//go:build linux

package xlink

import (
	"net"

	"golang.org/x/sys/unix"
)

// sendBroadcast sets SO_BROADCAST on the connection's underlying socket
// before writing, since net.UDPConn does not enable broadcast by default on
// Linux and a plain WriteToUDP to a broadcast address would otherwise fail
// with EACCES.
func (c *Connection) sendBroadcast(to *net.UDPAddr, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	if sockErr != nil {
		return sockErr
	}

	_, err = conn.WriteToUDP(payload, to)
	return err
}

package xlink

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codedwrench/mondevtopromisc/internal/iface"
	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

const (
	// DefaultPort is the default local/discovery/remote control port.
	DefaultPort = 34523

	keepAliveInterval     = 3 * time.Second
	missedKeepAliveWindow = 15 * time.Second
	receiveTimeout        = 200 * time.Millisecond
)

// HandshakeTimeout is a var rather than a const so tests can shrink it
// instead of waiting out the real 10s handshake window.
var HandshakeTimeout = 10 * time.Second

// Connection is the UDP client for XLink Kai's e-info tunneling protocol:
// discovery, the connect/connected handshake, periodic keepalive, chat, and
// frame I/O.
type Connection struct {
	log      *logrus.Logger
	username string
	version  string

	mu         sync.Mutex
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	localPort  int

	state          stateBox
	lastKeepAlive  time.Time
	handshakeStart time.Time

	device iface.FrameSink

	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Connection. username/version are sent during the handshake
// and in the optional e;info; announcement; log may be nil.
func New(log *logrus.Logger, username, version string) *Connection {
	return &Connection{
		log:      log,
		username: username,
		version:  version,
	}
}

// SetDevice attaches the sink downstream (e;e;) frames are forwarded to.
func (c *Connection) SetDevice(sink iface.FrameSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.device = sink
}

// State reports the connection's current position in the handshake/teardown
// state machine.
func (c *Connection) State() State { return c.state.Get() }

// Open performs discovery (host=="") or a direct unicast handshake (host!="")
// against port, blocking until either the handshake completes or
// HandshakeTimeout elapses.
func (c *Connection) Open(host string, port int) error {
	if port == 0 {
		port = DefaultPort
	}

	local, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return xerrs.Wrap(xerrs.XLinkUnavailable, err, "binding local UDP socket")
	}

	c.mu.Lock()
	c.conn = local
	c.localPort = local.LocalAddr().(*net.UDPAddr).Port
	c.mu.Unlock()

	if host == "" {
		c.state.Set(Discovering)
		if err := c.discover(port); err != nil {
			c.state.Set(Failed)
			return err
		}
		return nil
	}

	c.state.Set(Connecting)
	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		c.state.Set(Failed)
		return xerrs.Wrap(xerrs.XLinkUnavailable, err, "resolving XLink Kai address")
	}
	c.mu.Lock()
	c.remoteAddr = remote
	c.mu.Unlock()

	if err := c.handshake(remote); err != nil {
		c.state.Set(Failed)
		return err
	}
	return nil
}

// discover broadcasts the handshake to the LAN discovery port and adopts the
// first connected; reply's source address as the fixed remote endpoint.
func (c *Connection) discover(port int) error {
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if err := c.sendBroadcast(broadcastAddr, tagConnect(c.username, c.version)); err != nil {
		return xerrs.Wrap(xerrs.XLinkUnavailable, err, "sending discovery broadcast")
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	deadline := time.Now().Add(HandshakeTimeout)
	buf := make([]byte, 65535)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		in := parseIncoming(buf[:n])
		if in.kind == incomingConnected {
			c.mu.Lock()
			c.remoteAddr = from
			c.mu.Unlock()
			c.onConnected()
			return nil
		}
	}
	return xerrs.New(xerrs.XLinkUnavailable, "discovery handshake timed out")
}

// handshake sends a unicast connect; and waits for connected; from remote.
func (c *Connection) handshake(remote *net.UDPAddr) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if _, err := conn.WriteToUDP(tagConnect(c.username, c.version), remote); err != nil {
		return xerrs.Wrap(xerrs.XLinkUnavailable, err, "sending handshake")
	}

	deadline := time.Now().Add(HandshakeTimeout)
	buf := make([]byte, 65535)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		in := parseIncoming(buf[:n])
		if in.kind == incomingConnected {
			c.onConnected()
			return nil
		}
	}
	return xerrs.New(xerrs.XLinkUnavailable, "handshake timed out")
}

func (c *Connection) onConnected() {
	c.mu.Lock()
	c.lastKeepAlive = time.Now()
	c.mu.Unlock()
	c.state.Set(Connected)
	if err := c.sendTagged(tagInfo(c.username, c.version)); err != nil && c.log != nil {
		c.log.WithError(err).Debug("failed to send info announcement")
	}
}

// Close sends disconnect;disconnect; (if connected), stops the receiver
// goroutine, and releases the socket.
func (c *Connection) Close() error {
	if c.state.Get() == Connected {
		_ = c.sendTagged(tagDisconnect())
	}

	c.mu.Lock()
	running := c.running
	conn := c.conn
	c.mu.Unlock()

	if running {
		close(c.stop)
		c.wg.Wait()
	}

	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	c.conn = nil
	c.running = false
	c.remoteAddr = nil
	c.mu.Unlock()

	c.state.Set(Disconnected)
	return nil
}

// StartReceiverThread spawns the single goroutine that sends periodic
// keepalives, reads and dispatches incoming datagrams, and declares Failed
// after missedKeepAliveWindow without a reply.
func (c *Connection) StartReceiverThread() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return xerrs.New(xerrs.Fatal, "receiver thread already running")
	}
	c.running = true
	c.stop = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.receiveLoop()
	return nil
}

func (c *Connection) receiveLoop() {
	defer c.wg.Done()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	buf := make([]byte, 65535)
	for {
		select {
		case <-c.stop:
			return
		case <-keepAliveTicker.C:
			if err := c.sendTagged(tagKeepAlive()); err != nil && c.log != nil {
				c.log.WithError(err).Debug("failed to send keepalive")
			}
			c.mu.Lock()
			elapsed := time.Since(c.lastKeepAlive)
			c.mu.Unlock()
			if elapsed > missedKeepAliveWindow {
				c.state.Set(Failed)
				if c.log != nil {
					c.log.Warn("missed keepalive window exceeded, marking connection failed")
				}
				return
			}
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		c.dispatch(buf[:n])
	}
}

func (c *Connection) dispatch(data []byte) {
	in := parseIncoming(data)
	switch in.kind {
	case incomingKeepAlive:
		c.mu.Lock()
		c.lastKeepAlive = time.Now()
		c.mu.Unlock()
		if err := c.sendTagged(tagKeepAlive()); err != nil && c.log != nil {
			c.log.WithError(err).Debug("failed to answer keepalive in kind")
		}
	case incomingEthernet:
		c.mu.Lock()
		device := c.device
		c.mu.Unlock()
		if device != nil {
			if err := device.Send(in.body); err != nil && c.log != nil {
				c.log.WithError(err).Warn("failed to inject downstream frame")
			}
		}
	case incomingChat:
		if c.log != nil {
			c.log.WithField("chat", normalizeChatText(in.body)).Info("chat message received")
		}
	case incomingDisconnect:
		c.state.Set(Failed)
		if c.log != nil {
			c.log.Warn("received disconnect from XLink Kai")
		}
	case incomingUnknown:
		if c.log != nil {
			c.log.WithField("tag", string(in.body)).Warn("unrecognized XLink Kai tag")
		}
	}
}

// Send frames data as e;e; and transmits it upstream to XLink Kai.
func (c *Connection) Send(data []byte) error {
	return c.sendTagged(tagEthernet(data))
}

// SendChat sends a chat message verbatim (outgoing chat is not
// codepage-converted; only incoming legacy chat needs normalizeChatText).
func (c *Connection) SendChat(msg string) error {
	return c.sendTagged(tagChat(msg))
}

func (c *Connection) sendTagged(payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	remote := c.remoteAddr
	c.mu.Unlock()
	if conn == nil || remote == nil {
		return xerrs.New(xerrs.XLinkUnavailable, "connection not open")
	}
	_, err := conn.WriteToUDP(payload, remote)
	if err != nil {
		return xerrs.Wrap(xerrs.XLinkUnavailable, err, "writing to XLink Kai socket")
	}
	return nil
}

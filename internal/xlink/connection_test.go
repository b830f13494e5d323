package xlink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	frames [][]byte
}

func (f *fakeSink) Send(data []byte) error {
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

// fakeKai is a minimal stand-in for an XLink Kai engine: serveOnce replies
// connected; to the first datagram it sees; tests read any further
// datagrams from its socket directly.
type fakeKai struct {
	conn *net.UDPConn
}

func newFakeKai(t *testing.T) *fakeKai {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	return &fakeKai{conn: conn}
}

func (k *fakeKai) addr() *net.UDPAddr { return k.conn.LocalAddr().(*net.UDPAddr) }

func (k *fakeKai) close() { k.conn.Close() }

func (k *fakeKai) serveOnce(reply []byte) (*net.UDPAddr, error) {
	buf := make([]byte, 4096)
	_ = k.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, from, err := k.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	_, err = k.conn.WriteToUDP(reply, from)
	return from, err
}

func TestHandshakeUnicastConnects(t *testing.T) {
	kai := newFakeKai(t)
	defer kai.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = kai.serveOnce([]byte("connected;ok;"))
	}()

	c := New(nil, "bridge", "1.0")
	err := c.Open("127.0.0.1", kai.addr().Port)
	require.NoError(t, err)
	<-done
	assert.Equal(t, Connected, c.State())
	require.NoError(t, c.Close())
	assert.Equal(t, Disconnected, c.State())
}

func TestHandshakeTimesOutWhenUnreachable(t *testing.T) {
	origTimeout := HandshakeTimeout
	HandshakeTimeout = 50 * time.Millisecond
	defer func() { HandshakeTimeout = origTimeout }()

	unused, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	port := unused.LocalAddr().(*net.UDPAddr).Port
	unused.Close()

	c := New(nil, "bridge", "1.0")
	err = c.Open("127.0.0.1", port)
	require.Error(t, err)
	assert.Equal(t, Failed, c.State())
}

func TestSendFramesAsEthernetTag(t *testing.T) {
	kai := newFakeKai(t)
	defer kai.close()

	connected := make(chan struct{})
	received := make(chan []byte, 1)
	go func() {
		from, err := kai.serveOnce([]byte("connected;ok;"))
		close(connected)
		if err != nil {
			return
		}
		buf := make([]byte, 4096)
		_ = kai.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		// The first datagram after connected; is the e;info; announcement.
		if _, _, err := kai.conn.ReadFromUDP(buf); err != nil {
			return
		}
		n, _, err := kai.conn.ReadFromUDP(buf)
		if err == nil {
			received <- append([]byte(nil), buf[:n]...)
		}
		_ = from
	}()

	c := New(nil, "bridge", "1.0")
	require.NoError(t, c.Open("127.0.0.1", kai.addr().Port))
	<-connected

	require.NoError(t, c.Send([]byte("hello-frame")))

	select {
	case got := <-received:
		assert.Equal(t, "e;e;hello-frame", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tagged frame")
	}
	require.NoError(t, c.Close())
}

func TestReceivedKeepAliveIsAnsweredInKind(t *testing.T) {
	kai := newFakeKai(t)
	defer kai.close()

	connected := make(chan struct{})
	clientAddr := make(chan *net.UDPAddr, 1)
	go func() {
		from, err := kai.serveOnce([]byte("connected;ok;"))
		close(connected)
		if err != nil {
			return
		}
		clientAddr <- from
	}()

	c := New(nil, "bridge", "1.0")
	require.NoError(t, c.Open("127.0.0.1", kai.addr().Port))
	<-connected
	require.NoError(t, c.StartReceiverThread())

	from := <-clientAddr
	buf := make([]byte, 4096)
	_ = kai.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// Drain the e;info; announcement sent right after connected;.
	_, _, err := kai.conn.ReadFromUDP(buf)
	require.NoError(t, err)

	_, err = kai.conn.WriteToUDP([]byte("keepalive;"), from)
	require.NoError(t, err)

	n, _, err := kai.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "e;keepalive;", string(buf[:n]))

	require.NoError(t, c.Close())
}

func TestDispatchDeliversEthernetFrameToDevice(t *testing.T) {
	c := New(nil, "bridge", "1.0")
	sink := &fakeSink{}
	c.SetDevice(sink)

	c.dispatch([]byte("e;e;downstream-bytes"))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, "downstream-bytes", string(sink.frames[0]))
}

func TestDispatchDisconnectMarksFailed(t *testing.T) {
	c := New(nil, "bridge", "1.0")
	c.state.Set(Connected)
	c.dispatch([]byte("disconnect;disconnect;"))
	assert.Equal(t, Failed, c.State())
}

func TestDispatchKeepAliveRefreshesDeadline(t *testing.T) {
	c := New(nil, "bridge", "1.0")
	c.lastKeepAlive = time.Now().Add(-1 * time.Hour)
	c.dispatch([]byte("keepalive;"))
	assert.WithinDuration(t, time.Now(), c.lastKeepAlive, time.Second)
}

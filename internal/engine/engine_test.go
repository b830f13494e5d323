package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedwrench/mondevtopromisc/internal/xlink"
)

func TestWaitForTimeTransitionsAfterElapsed(t *testing.T) {
	model := &ControlModel{}
	e := New(nil, model)

	model.scheduleWait(20*time.Millisecond, StopEngine)
	e.Tick() // records waitStart
	assert.Equal(t, WaitForTime, model.getCommand())

	time.Sleep(30 * time.Millisecond)
	e.Tick()
	assert.Equal(t, StopEngine, model.getCommand())
}

// TestStartEngineUnreachableXLinkSchedulesWait: a handshake timeout should
// move EngineStatus to Error and schedule WaitForTime with TimeToWait = 10s
// (the XLink-side failure path).
func TestStartEngineUnreachableXLinkSchedulesWait(t *testing.T) {
	origTimeout := xlink.HandshakeTimeout
	xlink.HandshakeTimeout = 50 * time.Millisecond
	defer func() { xlink.HandshakeTimeout = origTimeout }()

	model := &ControlModel{
		AdapterName: "wlan0",
		XLinkIP:     "203.0.113.1", // unroutable TEST-NET-3 address, never replies
		XLinkPort:   1,
	}

	e := New(nil, model)
	model.SetCommand(StartEngine)
	e.Tick()

	assert.Equal(t, Error, model.Status())
	assert.Equal(t, WaitForTime, model.getCommand())
	assert.Equal(t, 10*time.Second, model.TimeToWait)
	assert.Equal(t, NoCommand, model.CommandAfterWait)
}

func TestStopEngineReturnsToIdleWithoutRunningDevice(t *testing.T) {
	model := &ControlModel{}
	e := New(nil, model)
	model.setStatus(Running)

	model.SetCommand(StopEngine)
	e.Tick()

	assert.Equal(t, Idle, model.Status())
	assert.Equal(t, NoCommand, model.getCommand())
}

func TestDedupSSIDsRemovesDuplicatesAndEmpty(t *testing.T) {
	got := dedupSSIDs([]string{"PSP_", "", "PSP_", "SCE_"})
	require.Equal(t, []string{"PSP_", "SCE_"}, got)
}

func TestPSPVitaSSIDPrefixesMatchRealAdHocNames(t *testing.T) {
	require.Equal(t, []string{"PSP_", "SCE_"}, pspVitaSSIDPrefixes)
}

func TestSearchNetworkCommandsAreFaithfulNoOps(t *testing.T) {
	model := &ControlModel{}
	e := New(nil, model)

	model.SetCommand(StartSearchNetworks)
	e.Tick()
	assert.Equal(t, NoCommand, model.getCommand())

	model.SetCommand(StopSearchNetworks)
	e.Tick()
	assert.Equal(t, NoCommand, model.getCommand())
}

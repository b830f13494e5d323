// Package engine implements the finite control loop that owns a capture
// device and an XLink Kai connection, driven by a shared ControlModel.
package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codedwrench/mondevtopromisc/internal/capture"
	"github.com/codedwrench/mondevtopromisc/internal/config"
	"github.com/codedwrench/mondevtopromisc/internal/packetconv"
	"github.com/codedwrench/mondevtopromisc/internal/xlink"
)

// Command is one of the values an external collaborator may set on the
// ControlModel for the engine to act on at its next tick.
type Command int

const (
	NoCommand Command = iota
	StartEngine
	StopEngine
	WaitForTime
	SaveSettings
	StartSearchNetworks
	StopSearchNetworks
)

// Status is one of the three values EngineStatus may hold: only
// Idle->Running via StartEngine, only Running/Error->Idle via StopEngine.
type Status int

const (
	Idle Status = iota
	Running
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// pspVitaSSIDPrefixes are appended to the SSID filter list when
// AutoDiscover is set: the hardcoded ad-hoc SSID prefixes for the two
// handheld families this bridge targets.
var pspVitaSSIDPrefixes = []string{"PSP_", "SCE_"}

// ControlModel is the shared state an external collaborator (a UI, a CLI
// loop, a test) mutates to drive the engine, and the engine reports status
// back through.
type ControlModel struct {
	mu sync.Mutex

	Command      Command
	EngineStatus Status

	AdapterName           string
	XLinkIP               string
	XLinkPort             int
	UsePSPPlugin          bool
	AutoDiscover          bool
	OnlyAcceptFromMac     string
	AcknowledgeDataFrames bool
	AutoDiscoverSSIDs     []string
	TimeToWait            time.Duration
	CommandAfterWait      Command
	LogLevel              string

	waitStart time.Time
}

func (m *ControlModel) getCommand() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Command
}

// SetCommand is the entry point external collaborators use to drive the
// engine; reads of the rest of ControlModel's fields are safe at any time
// without a lock so long as callers accept a tick-old value, but Command
// itself is mutated under lock since both the engine and external callers
// can write it (WaitForTime re-arming vs. a fresh external command).
func (m *ControlModel) SetCommand(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Command = c
}

func (m *ControlModel) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EngineStatus = s
}

// Status returns the engine's current status for external observers.
func (m *ControlModel) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EngineStatus
}

func (m *ControlModel) scheduleWait(d time.Duration, after Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Command = WaitForTime
	m.TimeToWait = d
	m.CommandAfterWait = after
	m.waitStart = time.Time{}
}

// Engine runs the control loop on top of a ControlModel.
type Engine struct {
	log   *logrus.Logger
	model *ControlModel

	device       capture.Device
	xlink        *xlink.Connection
	settingsPath string
}

// New builds an Engine bound to model. log may be nil.
func New(log *logrus.Logger, model *ControlModel) *Engine {
	return &Engine{log: log, model: model}
}

// Tick runs a single iteration of the control loop, acting on
// model.Command. Callers drive the tick cadence themselves (e.g. a
// millisecond ticker in cmd/xlinkbridge).
func (e *Engine) Tick() {
	switch e.model.getCommand() {
	case StartEngine:
		e.startEngine()
	case StopEngine:
		e.stopEngine()
	case WaitForTime:
		e.waitForTime()
	case SaveSettings:
		e.saveSettings()
	case StartSearchNetworks:
		if e.log != nil {
			e.log.Debug("StartSearchNetworks is not yet implemented")
		}
		e.model.SetCommand(NoCommand)
	case StopSearchNetworks:
		if e.log != nil {
			e.log.Debug("StopSearchNetworks is not yet implemented")
		}
		e.model.SetCommand(NoCommand)
	case NoCommand:
	}
}

func (e *Engine) startEngine() {
	m := e.model

	var device capture.Device
	if m.UsePSPPlugin {
		device = capture.NewWirelessPSPPluginDevice(e.log, nil)
	} else {
		monitor := capture.NewMonitorDevice(e.log)
		if m.OnlyAcceptFromMac != "" {
			if mac, err := packetconv.MacToInt(m.OnlyAcceptFromMac); err == nil {
				monitor.SetSourceMACToFilter(mac)
			} else if e.log != nil {
				e.log.WithError(err).Warn("ignoring malformed OnlyAcceptFromMac")
			}
		}
		monitor.SetAcknowledgePackets(m.AcknowledgeDataFrames)
		device = monitor
	}

	conn := xlink.New(e.log, "xlinkbridge", "1.0")
	device.SetConnector(conn)
	conn.SetDevice(device)

	filters := append([]string{}, m.AutoDiscoverSSIDs...)
	if m.AutoDiscover {
		filters = append(filters, pspVitaSSIDPrefixes...)
	}
	filters = dedupSSIDs(filters)

	if err := conn.Open(m.XLinkIP, m.XLinkPort); err != nil {
		if e.log != nil {
			e.log.WithError(err).Error("failed to open XLink Kai connection")
		}
		m.setStatus(Error)
		m.scheduleWait(10*time.Second, NoCommand)
		return
	}

	if err := device.Open(m.AdapterName, filters); err != nil {
		if e.log != nil {
			e.log.WithError(err).Error("failed to open capture device")
		}
		_ = conn.Close()
		m.setStatus(Error)
		m.scheduleWait(5*time.Second, StopEngine)
		return
	}

	if err := device.StartReceiverThread(); err != nil {
		if e.log != nil {
			e.log.WithError(err).Error("failed to start device receiver thread")
		}
		_ = device.Close()
		_ = conn.Close()
		m.setStatus(Error)
		m.scheduleWait(5*time.Second, StopEngine)
		return
	}
	if err := conn.StartReceiverThread(); err != nil {
		if e.log != nil {
			e.log.WithError(err).Error("failed to start XLink receiver thread")
		}
		_ = device.Close()
		_ = conn.Close()
		m.setStatus(Error)
		m.scheduleWait(10*time.Second, NoCommand)
		return
	}

	e.device = device
	e.xlink = conn
	m.setStatus(Running)
	m.SetCommand(NoCommand)
}

func (e *Engine) stopEngine() {
	m := e.model
	if e.xlink != nil {
		_ = e.xlink.Close()
		e.xlink = nil
	}
	if e.device != nil {
		_ = e.device.Close()
		e.device = nil
	}
	m.mu.Lock()
	m.AutoDiscoverSSIDs = nil
	m.mu.Unlock()
	m.setStatus(Idle)
	m.SetCommand(NoCommand)
}

func (e *Engine) waitForTime() {
	m := e.model
	m.mu.Lock()
	if m.waitStart.IsZero() {
		m.waitStart = time.Now()
		m.mu.Unlock()
		return
	}
	elapsed := time.Since(m.waitStart)
	wait := m.TimeToWait
	after := m.CommandAfterWait
	m.mu.Unlock()

	if elapsed >= wait {
		m.mu.Lock()
		m.waitStart = time.Time{}
		m.mu.Unlock()
		m.SetCommand(after)
	}
}

func (e *Engine) saveSettings() {
	m := e.model
	m.mu.Lock()
	s := config.Settings{
		AdapterName:                 m.AdapterName,
		XLinkIP:                     m.XLinkIP,
		XLinkPort:                   m.XLinkPort,
		UsePSPPlugin:                m.UsePSPPlugin,
		AutoDiscoverPSPVitaNetworks: m.AutoDiscover,
		OnlyAcceptFromMac:           m.OnlyAcceptFromMac,
		AcknowledgeDataFrames:       m.AcknowledgeDataFrames,
		LogLevel:                    m.LogLevel,
	}
	path := e.settingsPath
	m.mu.Unlock()

	if path == "" {
		path = "xlinkbridge.conf"
	}
	if err := config.Save(path, s); err != nil && e.log != nil {
		e.log.WithError(err).Error("failed to save settings")
	}
	m.SetCommand(NoCommand)
}

// SetSettingsPath overrides the file SaveSettings writes to; defaults to
// "xlinkbridge.conf" in the working directory.
func (e *Engine) SetSettingsPath(path string) { e.settingsPath = path }

func dedupSSIDs(ssids []string) []string {
	seen := make(map[string]bool, len(ssids))
	out := make([]string, 0, len(ssids))
	for _, s := range ssids {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

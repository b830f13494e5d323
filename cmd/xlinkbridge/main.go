package main

import (
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/codedwrench/mondevtopromisc/internal/config"
	"github.com/codedwrench/mondevtopromisc/internal/engine"
	"github.com/codedwrench/mondevtopromisc/internal/xlog"
)

func main() {
	adapter := flag.String("iface", "", "monitor-mode adapter name")
	xlinkIP := flag.String("xlink-ip", "", "XLink Kai IP (empty enables discovery)")
	xlinkPort := flag.Int("xlink-port", 34523, "XLink Kai port")
	usePSPPlugin := flag.Bool("psp-plugin", false, "use the PSP plugin capture device variant")
	autoDiscover := flag.Bool("auto-discover", true, "append PSP/Vita SSID prefixes to the filter list")
	onlyFromMac := flag.String("only-from-mac", "", "restrict accepted frames to this source MAC")
	ackFrames := flag.Bool("ack-frames", false, "synthesize ACKs for accepted data frames")
	logLevel := flag.String("log-level", "info", "trace|debug|info|warning|error")
	logFile := flag.String("log-file", "", "also append logs to this file")
	settingsFile := flag.String("settings", "xlinkbridge.conf", "settings file path")
	flag.Parse()

	log, err := xlog.New(xlog.Level(*logLevel), *logFile)
	if err != nil {
		os.Exit(1)
	}

	model := &engine.ControlModel{
		AdapterName:           *adapter,
		XLinkIP:               *xlinkIP,
		XLinkPort:             *xlinkPort,
		UsePSPPlugin:          *usePSPPlugin,
		AutoDiscover:          *autoDiscover,
		OnlyAcceptFromMac:     *onlyFromMac,
		AcknowledgeDataFrames: *ackFrames,
		LogLevel:              *logLevel,
	}

	e := engine.New(log, model)
	e.SetSettingsPath(*settingsFile)

	if s, err := config.Load(*settingsFile); err == nil {
		applySettings(model, s)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var shuttingDown atomic.Bool
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		model.SetCommand(engine.StopEngine)
		shuttingDown.Store(true)
	}()

	model.SetCommand(engine.StartEngine)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		e.Tick()
		if shuttingDown.Load() && model.Status() == engine.Idle {
			return
		}
	}
}

func applySettings(model *engine.ControlModel, s config.Settings) {
	if model.AdapterName == "" {
		model.AdapterName = s.AdapterName
	}
	if model.XLinkIP == "" {
		model.XLinkIP = s.XLinkIP
	}
	if model.XLinkPort == 0 {
		model.XLinkPort = s.XLinkPort
	}
	if model.OnlyAcceptFromMac == "" {
		model.OnlyAcceptFromMac = s.OnlyAcceptFromMac
	}
}

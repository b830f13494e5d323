// Package config loads and saves the bridge's settings file, a flat
// key=value text format — the one ambient concern kept on the standard
// library rather than a third-party config library; see DESIGN.md for why.
package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/codedwrench/mondevtopromisc/internal/xerrs"
)

// Settings mirrors the engine's ControlModel configuration fields that are
// persisted across runs. Command, EngineStatus, and the WaitForTime
// bookkeeping fields are runtime-only and are not part of this file.
type Settings struct {
	AdapterName                 string
	XLinkIP                     string
	XLinkPort                   int
	UsePSPPlugin                bool
	AutoDiscoverXLinkKai        bool
	AutoDiscoverPSPVitaNetworks bool
	OnlyAcceptFromMac           string
	AcknowledgeDataFrames       bool
	LogLevel                    string
}

// Load reads a flat key=value file, one assignment per line, '#' starting a
// comment. Unknown keys are ignored rather than rejected, so older and
// newer bridge versions can share a settings file.
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, xerrs.Wrap(xerrs.Fatal, err, "opening settings file "+path)
	}
	defer f.Close()

	s := Settings{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		applyField(&s, strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return Settings{}, xerrs.Wrap(xerrs.Fatal, err, "reading settings file "+path)
	}
	return s, nil
}

// Save writes s as a flat key=value file, keys sorted for a stable diff
// between runs.
func Save(path string, s Settings) error {
	fields := map[string]string{
		"AdapterName":                 s.AdapterName,
		"XLinkIP":                     s.XLinkIP,
		"XLinkPort":                   strconv.Itoa(s.XLinkPort),
		"UsePSPPlugin":                strconv.FormatBool(s.UsePSPPlugin),
		"AutoDiscoverXLinkKai":        strconv.FormatBool(s.AutoDiscoverXLinkKai),
		"AutoDiscoverPSPVitaNetworks": strconv.FormatBool(s.AutoDiscoverPSPVitaNetworks),
		"OnlyAcceptFromMac":           s.OnlyAcceptFromMac,
		"AcknowledgeDataFrames":       strconv.FormatBool(s.AcknowledgeDataFrames),
		"LogLevel":                    s.LogLevel,
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, fields[k])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return xerrs.Wrap(xerrs.Fatal, err, "writing settings file "+path)
	}
	return nil
}

func applyField(s *Settings, key, value string) {
	switch key {
	case "AdapterName":
		s.AdapterName = value
	case "XLinkIP":
		s.XLinkIP = value
	case "XLinkPort":
		if n, err := strconv.Atoi(value); err == nil {
			s.XLinkPort = n
		}
	case "UsePSPPlugin":
		s.UsePSPPlugin = value == "true"
	case "AutoDiscoverXLinkKai":
		s.AutoDiscoverXLinkKai = value == "true"
	case "AutoDiscoverPSPVitaNetworks":
		s.AutoDiscoverPSPVitaNetworks = value == "true"
	case "OnlyAcceptFromMac":
		s.OnlyAcceptFromMac = value
	case "AcknowledgeDataFrames":
		s.AcknowledgeDataFrames = value == "true"
	case "LogLevel":
		s.LogLevel = value
	}
}

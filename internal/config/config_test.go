package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.conf")

	want := Settings{
		AdapterName:           "wlan0",
		XLinkIP:               "192.168.1.50",
		XLinkPort:             34523,
		UsePSPPlugin:          true,
		AutoDiscoverXLinkKai:  true,
		OnlyAcceptFromMac:     "aa:bb:cc:dd:ee:ff",
		AcknowledgeDataFrames: true,
		LogLevel:              "debug",
	}

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadIgnoresCommentsAndUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.conf")
	contents := "# a comment\nAdapterName=wlan1\nSomeFutureKey=whatever\n\nXLinkPort=1234\n"
	require.NoError(t, writeFile(path, contents))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wlan1", got.AdapterName)
	assert.Equal(t, 1234, got.XLinkPort)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}

// Package handler80211 is the stateful companion to packetconv that owns
// the session lock — the SSID/BSSID the bridge has decided is "the"
// PSP/Vita ad-hoc session to forward.
package handler80211

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codedwrench/mondevtopromisc/internal/packetconv"
)

// defaultLockTimeout is how long the handler will keep a lock alive without
// seeing a refreshing beacon before it resets to unlocked: a session that
// has gone out of range should not be squatted on forever.
const defaultLockTimeout = 30 * time.Second

// Lock is a snapshot of the handler's session lock state.
type Lock struct {
	Locked    bool
	BSSID     uint64
	SSID      string
	MaxRate   uint8
	Frequency uint16
}

// Handler80211 tracks the locked BSSID, the SSID filter prefixes used to
// decide which beacon locks onto a session, and the per-session radio
// parameters (MaxRate/Frequency) that downstream frames must carry.
type Handler80211 struct {
	mu          sync.Mutex
	lock        Lock
	lastSeen    time.Time
	filters     []string
	lockTimeout time.Duration
	log         *logrus.Logger
}

// New builds a Handler80211 with the given SSID filter prefixes.
func New(log *logrus.Logger, filters []string) *Handler80211 {
	return &Handler80211{
		filters:     append([]string(nil), filters...),
		lockTimeout: defaultLockTimeout,
		log:         log,
	}
}

// SetFilters replaces the SSID filter prefixes used for lock-on.
func (h *Handler80211) SetFilters(filters []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters = append([]string(nil), filters...)
}

// matchesFilter reports whether ssid starts with any configured prefix.
func (h *Handler80211) matchesFilter(ssid string) bool {
	for _, f := range h.filters {
		if f != "" && strings.HasPrefix(ssid, f) {
			return true
		}
	}
	return false
}

// HandleBeacon accepts a parsed beacon. If unlocked and the SSID matches a
// configured filter, it locks onto the beacon's BSSID. If already locked to
// that BSSID, it refreshes MaxRate/Frequency (handhelds may change
// channel). Beacons for other BSSIDs while locked are ignored.
func (h *Handler80211) HandleBeacon(info packetconv.BeaconInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if !h.lock.Locked {
		if !h.matchesFilter(info.SSID) {
			return
		}
		h.lock = Lock{
			Locked:    true,
			BSSID:     info.BSSID,
			SSID:      info.SSID,
			MaxRate:   info.MaxRate,
			Frequency: info.Frequency,
		}
		h.lastSeen = now
		if h.log != nil {
			h.log.WithFields(logrus.Fields{"bssid": info.BSSID, "ssid": info.SSID}).
				Info("locked onto ad-hoc session")
		}
		return
	}

	if h.lock.BSSID == info.BSSID {
		h.lock.MaxRate = info.MaxRate
		h.lock.Frequency = info.Frequency
		h.lastSeen = now
	}
}

// HandleDataFrame is a no-op while unlocked; while locked it refreshes the
// liveness timer for any frame matching the locked BSSID, and is the sole
// defense against HandleBeacon-only resets accumulating staleness.
func (h *Handler80211) HandleDataFrame(bssid uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lock.Locked && h.lock.BSSID == bssid {
		h.lastSeen = time.Now()
	}
}

// CheckTimeout resets the lock if no beacon/data frame for the locked
// session has been seen within lockTimeout. Intended to be called
// periodically by the owning capture device's receive loop.
func (h *Handler80211) CheckTimeout() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.lock.Locked {
		return
	}
	if time.Since(h.lastSeen) > h.lockTimeout {
		if h.log != nil {
			h.log.WithField("bssid", h.lock.BSSID).Warn("session lock timed out, resetting")
		}
		h.lock = Lock{}
	}
}

// GetLockedBSSID returns the BSSID the handler is currently locked onto, or
// 0 if unlocked.
func (h *Handler80211) GetLockedBSSID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock.BSSID
}

// GetLock returns a snapshot of the current lock state.
func (h *Handler80211) GetLock() Lock {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock
}

// IsLocked reports whether the handler currently holds a session lock.
func (h *Handler80211) IsLocked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lock.Locked
}

// Reset clears the session lock, transitioning back to unlocked.
func (h *Handler80211) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lock = Lock{}
}

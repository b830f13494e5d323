package xerrs

import (
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	cause := stderrors.New("adapter busy")
	err := Wrap(DeviceUnavailable, cause, "opening wlan0")

	assert.True(t, Is(err, DeviceUnavailable))
	assert.False(t, Is(err, XLinkUnavailable))
}

func TestKindOfReturnsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(stderrors.New("not ours"))
	assert.False(t, ok)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(Fatal, nil, "shouldn't matter"))
}

func TestNewCarriesKind(t *testing.T) {
	err := New(ProtocolViolation, "unrecognized tag")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ProtocolViolation, kind)
	assert.Contains(t, err.Error(), "ProtocolViolation")
}

package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpenHandleRejectsUnknownAdapter(t *testing.T) {
	_, err := openHandle("no-such-adapter-xyz", SnapshotLength, 10*time.Millisecond, nil)
	assert.Error(t, err)
}

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingGeometry(t *testing.T) {
	tests := []struct {
		name     string
		bufferMB int
		snapLen  int
	}{
		{"small snaplen", 8, 1500},
		{"full snaplen", 8, 65535},
		{"tiny buffer", 1, 65535},
		{"large buffer", 256, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, block, n, err := ringGeometry(tt.bufferMB, tt.snapLen, 4096)
			require.NoError(t, err)
			assert.Zero(t, frame%tpacketAlignment)
			assert.GreaterOrEqual(t, frame, tt.snapLen+tpacketHdrLen)
			assert.Zero(t, block%4096)
			assert.Zero(t, block%frame)
			assert.GreaterOrEqual(t, n, 1)
		})
	}
}

func TestRingGeometryRejectsBadInput(t *testing.T) {
	_, _, _, err := ringGeometry(0, 1500, 4096)
	assert.Error(t, err)
	_, _, _, err = ringGeometry(8, 0, 4096)
	assert.Error(t, err)
	_, _, _, err = ringGeometry(8, 1500, 1000)
	assert.Error(t, err)
}

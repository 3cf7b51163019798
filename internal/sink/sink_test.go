package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
)

type failingSink struct {
	Nop
	openErr error
}

func (f failingSink) Open() error { return f.openErr }

func init() {
	Register("test-broken", func(config.SinkConfig) (Sink, error) {
		return failingSink{openErr: errors.New("disk on fire")}, nil
	})
	Register("test-unbuildable", func(config.SinkConfig) (Sink, error) {
		return nil, errors.New("bad config")
	})
}

func TestOpenFallsBackToNop(t *testing.T) {
	for _, typ := range []string{"", NopName, "nope", "test-broken", "test-unbuildable"} {
		t.Run(typ, func(t *testing.T) {
			assert.Equal(t, Nop{}, Open(config.SinkConfig{Type: typ}))
		})
	}
}

func TestNopAcceptsEverything(t *testing.T) {
	var s Sink = Nop{}
	assert.NoError(t, s.Open())
	assert.NoError(t, s.Create(&core.Attack{}))
	assert.NoError(t, s.Update(&core.Attack{}))
	assert.NoError(t, s.Close())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("test-broken", nil)
	})
	assert.Contains(t, Types(), NopName)
	assert.Contains(t, Types(), "test-broken")
}

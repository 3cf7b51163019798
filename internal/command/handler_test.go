package command

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/attack"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/loader"
	"firestige.xyz/wiresentry/internal/scheduler"
	_ "firestige.xyz/wiresentry/plugins"
	"firestige.xyz/wiresentry/plugins/detector/portscan"
)

func newTestHandler(t *testing.T) (*CommandHandler, *scheduler.Registry, *attack.Tracker) {
	t.Helper()
	reg := scheduler.NewRegistry()
	tracker := attack.NewTracker()
	_, err := loader.Load(reg, loader.Default())
	require.NoError(t, err)

	h := NewCommandHandler(reg, tracker, func() Status {
		return Status{Version: "test", Sink: "none", Attacks: tracker.Len()}
	})
	return h, reg, tracker
}

func call(t *testing.T, h *CommandHandler, method string, params interface{}) Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	resp := h.Handle(context.Background(), Command{Method: method, Params: raw, ID: "req-1"})
	assert.Equal(t, "req-1", resp.ID)
	return resp
}

func TestCommandHandler_ModuleList(t *testing.T) {
	h, _, _ := newTestHandler(t)

	resp := call(t, h, MethodModuleList, nil)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(ModuleListResult)
	require.True(t, ok)
	assert.Len(t, result.Detectors, 3)
	require.Len(t, result.Handlers, 1)
	assert.Equal(t, "logger", result.Handlers[0].ID)
	assert.Contains(t, result.Available.Detectors, "portscan")
	assert.Contains(t, result.Available.Handlers, "webhook")
}

func TestCommandHandler_ModuleRegister(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	resp := call(t, h, MethodModuleRegister, ModuleRegisterParams{
		Kind:    "logger",
		Type:    loader.TypeHandler,
		Options: map[string]any{"id": "audit", "level": "info"},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, ModuleResult{ID: "audit", Type: loader.TypeHandler}, resp.Result)
	assert.Len(t, reg.Handlers(), 2)

	// Same ID again.
	resp = call(t, h, MethodModuleRegister, ModuleRegisterParams{Kind: "portscan", Type: loader.TypeDetector})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeModuleExists, resp.Error.Code)

	resp = call(t, h, MethodModuleRegister, ModuleRegisterParams{Kind: "nosuch", Type: loader.TypeDetector})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodePluginNotFound, resp.Error.Code)

	resp = call(t, h, MethodModuleRegister, ModuleRegisterParams{
		Kind: "logger", Type: loader.TypeHandler, Options: map[string]any{"level": "loud"},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)

	resp = call(t, h, MethodModuleRegister, ModuleRegisterParams{Kind: "logger", Type: "sensor"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestCommandHandler_ModuleUnregister(t *testing.T) {
	h, reg, _ := newTestHandler(t)

	resp := call(t, h, MethodModuleUnregister, ModuleUnregisterParams{ID: portscan.ID})
	require.Nil(t, resp.Error)
	assert.Equal(t, ModuleResult{ID: portscan.ID, Type: loader.TypeDetector}, resp.Result)
	assert.Len(t, reg.Detectors(), 2)

	resp = call(t, h, MethodModuleUnregister, ModuleUnregisterParams{ID: portscan.ID})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeModuleNotFound, resp.Error.Code)

	resp = call(t, h, MethodModuleUnregister, ModuleUnregisterParams{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

func TestCommandHandler_AttackList(t *testing.T) {
	h, _, tracker := newTestHandler(t)

	p := core.NewPacket(core.ProtocolARP, time.Now())
	tracker.Merge(core.NewAttack(core.DetectorInfo{ID: "d"}, "aa", "bb", "ARP Spoof", []*core.Packet{p}))

	resp := call(t, h, MethodAttackList, nil)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(AttackListResult)
	require.True(t, ok)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "ARP Spoof", result.Attacks[0].Type)
	assert.Equal(t, 1, result.Attacks[0].Packets)
}

func TestCommandHandler_DaemonStatus(t *testing.T) {
	h, _, _ := newTestHandler(t)

	resp := call(t, h, MethodDaemonStatus, nil)
	require.Nil(t, resp.Error)
	st, ok := resp.Result.(Status)
	require.True(t, ok)
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, 3, st.Modules[loader.TypeDetector])
	assert.Equal(t, 1, st.Modules[loader.TypeHandler])
}

func TestCommandHandler_DaemonShutdown(t *testing.T) {
	h, _, _ := newTestHandler(t)

	resp := call(t, h, MethodDaemonShutdown, nil)
	require.NotNil(t, resp.Error, "no shutdown func registered")

	called := make(chan struct{})
	h.SetShutdownFunc(func() { close(called) })
	resp = call(t, h, MethodDaemonShutdown, nil)
	require.Nil(t, resp.Error)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown func not called")
	}
}

func TestCommandHandler_UnknownMethod(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := call(t, h, "task_create", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

func TestCommandHandler_InvalidParams(t *testing.T) {
	h, _, _ := newTestHandler(t)
	resp := h.Handle(context.Background(), Command{
		Method: MethodModuleUnregister,
		Params: json.RawMessage(`{"id": 7}`),
		ID:     "req-2",
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
}

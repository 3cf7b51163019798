package command

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/loader"
)

func startServer(t *testing.T) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	h, _, _ := newTestHandler(t)
	h.SetShutdownFunc(func() {})

	socketPath := filepath.Join(t.TempDir(), "test.sock")
	server := NewUDSServer(socketPath, h)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	select {
	case <-server.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server not ready")
	}
	t.Cleanup(cancel)
	return socketPath, cancel, errCh
}

func TestUDSServerClient_Integration(t *testing.T) {
	socketPath, cancel, errCh := startServer(t)
	client := NewUDSClient(socketPath, 5*time.Second)
	ctx := context.Background()

	t.Run("module_list", func(t *testing.T) {
		res, err := client.ModuleList(ctx)
		require.NoError(t, err)
		assert.Len(t, res.Detectors, 3)
		assert.Len(t, res.Handlers, 1)
	})

	t.Run("module_register", func(t *testing.T) {
		res, err := client.ModuleRegister(ctx, ModuleRegisterParams{
			Kind:    "logger",
			Type:    loader.TypeHandler,
			Options: map[string]any{"id": "second"},
		})
		require.NoError(t, err)
		assert.Equal(t, "second", res.ID)
	})

	t.Run("module_unregister", func(t *testing.T) {
		res, err := client.ModuleUnregister(ctx, "second")
		require.NoError(t, err)
		assert.Equal(t, loader.TypeHandler, res.Type)

		_, err = client.ModuleUnregister(ctx, "second")
		var rpcErr *ErrorInfo
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, ErrCodeModuleNotFound, rpcErr.Code)
	})

	t.Run("attack_list", func(t *testing.T) {
		res, err := client.AttackList(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)
	})

	t.Run("daemon_status", func(t *testing.T) {
		st, err := client.DaemonStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "test", st.Version)
		assert.NoError(t, client.Ping(ctx))
	})

	t.Run("daemon_shutdown", func(t *testing.T) {
		assert.NoError(t, client.Shutdown(ctx))
	})

	t.Run("unknown_method", func(t *testing.T) {
		resp, err := client.Call(ctx, "unknown.method", nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
	})

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Error("server didn't stop in time")
	}

	_, err := os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file not removed after server stop")
}

func TestUDSServer_MalformedRequests(t *testing.T) {
	socketPath, _, _ := startServer(t)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 4096)

	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "-32700")

	_, err = conn.Write([]byte(`{"jsonrpc":"1.0","method":"module_list","id":1}` + "\n"))
	require.NoError(t, err)
	n, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "-32600")
}

func TestUDSClient_ConnectionError(t *testing.T) {
	client := NewUDSClient(filepath.Join(t.TempDir(), "missing.sock"), time.Second)

	_, err := client.ModuleList(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDaemonNotRunning))
}

func TestUDSServer_MultipleConnections(t *testing.T) {
	socketPath, _, _ := startServer(t)

	errCh := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := NewUDSClient(socketPath, 5*time.Second).AttackList(context.Background())
			errCh <- err
		}()
	}
	for i := 0; i < 5; i++ {
		assert.NoError(t, <-errCh)
	}
}

func TestUDSServer_StopIsIdempotent(t *testing.T) {
	h, _, _ := newTestHandler(t)
	s := NewUDSServer(filepath.Join(t.TempDir(), "s.sock"), h)
	require.NoError(t, s.Listen())
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

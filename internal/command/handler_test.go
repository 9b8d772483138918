package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icc.tech/wpan-agent/internal/core"
	"icc.tech/wpan-agent/internal/stack"
)

type fakeReloader struct {
	called int
	err    error
}

func (r *fakeReloader) Reload() error {
	r.called++
	return r.err
}

func newTestHandler(t *testing.T) (*CommandHandler, *stack.Stack) {
	t.Helper()
	stk := stack.New(stack.Config{Capacity: 4, Backlog: 8})
	return NewCommandHandler(stk, &fakeReloader{}), stk
}

func TestHandleSocketList(t *testing.T) {
	h, stk := newTestHandler(t)

	sk, err := stk.Open()
	require.NoError(t, err)
	defer sk.Close()
	require.NoError(t, sk.Bind(core.ShortAddress(0x0001)))

	resp := h.Handle(context.Background(), Command{Method: "socket_list", ID: "1"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "1", resp.ID)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, 1, result["count"])
	infos := result["sockets"].([]stack.SocketInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "0x0001", infos[0].Local)
}

func TestHandleRegistryStats(t *testing.T) {
	h, stk := newTestHandler(t)

	sk, err := stk.Open()
	require.NoError(t, err)
	defer sk.Close()

	resp := h.Handle(context.Background(), Command{Method: "registry_stats", ID: "2"})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, 4, result["capacity"])
	assert.Equal(t, 1, result["active"])
	assert.Equal(t, 3, result["free"])
}

func TestHandleDaemonStatus(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := h.Handle(context.Background(), Command{Method: "daemon_status", ID: "3"})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "0.1.0", result["version"])
	assert.Equal(t, 0, result["sockets"])
	assert.Contains(t, result, "uptime_sec")
}

func TestHandleDaemonShutdown(t *testing.T) {
	h, _ := newTestHandler(t)

	// Without a registered callback the command fails.
	resp := h.Handle(context.Background(), Command{Method: "daemon_shutdown", ID: "4"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)

	done := make(chan struct{})
	h.SetShutdownFunc(func() { close(done) })

	resp = h.Handle(context.Background(), Command{Method: "daemon_shutdown", ID: "5"})
	require.Nil(t, resp.Error)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}

func TestHandleConfigReload(t *testing.T) {
	stk := stack.New(stack.Config{Capacity: 2, Backlog: 8})
	reloader := &fakeReloader{}
	h := NewCommandHandler(stk, reloader)

	resp := h.Handle(context.Background(), Command{Method: "config_reload", ID: "6"})
	require.Nil(t, resp.Error)
	assert.Equal(t, 1, reloader.called)

	// Nil reloader reports an internal error.
	h2 := NewCommandHandler(stk, nil)
	resp = h2.Handle(context.Background(), Command{Method: "config_reload", ID: "7"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
}

func TestHandleUnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := h.Handle(context.Background(), Command{Method: "frobnicate", ID: "8"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMethodNotFound, resp.Error.Code)
}

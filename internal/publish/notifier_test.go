package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/redflag-cms/internal/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, hookURL string, timeout time.Duration) (*Notifier, *cache.MemoryPublishLog) {
	t.Helper()
	history := cache.NewMemoryPublishLog()
	log := zerolog.Nop()
	return NewNotifier(Config{HookURL: hookURL, Timeout: timeout, Logger: &log}, history), history
}

func TestTriggerPostsReason(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n, history := newTestNotifier(t, srv.URL, time.Second)
	event := n.Trigger(context.Background(), "create hello")

	assert.True(t, event.OK())
	assert.Equal(t, http.StatusCreated, event.StatusCode)
	assert.Equal(t, "create hello", got["reason"])

	last, err := history.LastPublish(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "create hello", last.Reason)
}

func TestTriggerRecordsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, history := newTestNotifier(t, srv.URL, time.Second)
	event := n.Trigger(context.Background(), "update hello")

	assert.False(t, event.OK())
	assert.Equal(t, http.StatusInternalServerError, event.StatusCode)
	assert.Contains(t, event.Error, "500")

	events, err := history.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.Error, events[0].Error)
}

func TestTriggerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	n, _ := newTestNotifier(t, srv.URL, 50*time.Millisecond)
	event := n.Trigger(context.Background(), "slow")

	assert.False(t, event.OK())
	assert.Contains(t, event.Error, "build hook request failed")
}

func TestTriggerSkippedWithoutHook(t *testing.T) {
	n, history := newTestNotifier(t, "", time.Second)
	event := n.Trigger(context.Background(), "delete hello")

	assert.True(t, event.Skipped)
	assert.False(t, event.OK())

	last, err := history.LastPublish(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Skipped)
}

func TestNotifyOutlivesCallerContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, history := newTestNotifier(t, srv.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, "create a")
	n.Notify(ctx, "create b")
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, n.Wait(waitCtx))

	assert.Equal(t, int32(2), calls.Load())
	events, err := history.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.OK(), e.Error)
	}
}

func TestWaitHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	n, _ := newTestNotifier(t, srv.URL, 5*time.Second)
	n.Notify(context.Background(), "stuck")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Wait(ctx), context.DeadlineExceeded)
}

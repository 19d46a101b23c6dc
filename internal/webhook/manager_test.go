package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })
	return st
}

func newTestManager(t *testing.T, st *store.Store, cfg Config) *Manager {
	t.Helper()
	m, err := NewManager(st, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, m.Close(ctx))
	})
	return m
}

// insertSubscription seeds a subscription directly, bypassing Register
// so tests can point at loopback httptest servers.
func insertSubscription(t *testing.T, st *store.Store, url string, eventTypes []string, project string) int64 {
	t.Helper()
	id, err := st.CreateSubscription(context.Background(), &store.Subscription{
		URL:        url,
		Secret:     testSecret,
		EventTypes: eventTypes,
		Project:    project,
	})
	require.NoError(t, err)
	return id
}

func deliveryLogs(t *testing.T, st *store.Store, subID int64) []store.DeliveryLog {
	t.Helper()
	logs, err := st.ListDeliveryLogs(context.Background(), subID, 0)
	require.NoError(t, err)
	return logs
}

type capturedRequest struct {
	contentType string
	signature   string
	event       string
	eventID     string
	body        []byte
}

func TestManagerDeliversSignedEvent(t *testing.T) {
	// Given a subscriber listening for task events
	st := newTestStore(t)
	received := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- capturedRequest{
			contentType: r.Header.Get("Content-Type"),
			signature:   r.Header.Get("X-Vibe-Signature"),
			event:       r.Header.Get("X-Vibe-Event"),
			eventID:     r.Header.Get("X-Vibe-Event-ID"),
			body:        body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	subID := insertSubscription(t, st, srv.URL, []string{EventTaskCreated}, "")
	m := newTestManager(t, st, Config{Enabled: true, Workers: 2, QueueSize: 8})

	// When a task event fires
	m.Fire(EventTaskCreated, "myapp", map[string]any{
		"task_number": "001",
		"title":       "Add login",
	})

	// Then the subscriber receives a signed JSON envelope
	var got capturedRequest
	select {
	case got = <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery received")
	}
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, EventTaskCreated, got.event)
	assert.NotEmpty(t, got.eventID)
	assert.Equal(t, "sha256="+Sign(testSecret, got.body), got.signature)

	var env envelope
	require.NoError(t, json.Unmarshal(got.body, &env))
	assert.Equal(t, got.eventID, env.EventID)
	assert.Equal(t, EventTaskCreated, env.EventType)
	require.NotNil(t, env.Project)
	assert.Equal(t, "myapp", *env.Project)
	assert.Equal(t, "001", env.Data["task_number"])
	_, err := time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)

	// And the attempt is logged as a success
	require.Eventually(t, func() bool {
		return len(deliveryLogs(t, st, subID)) == 1
	}, 3*time.Second, 20*time.Millisecond)
	logs := deliveryLogs(t, st, subID)
	assert.True(t, logs[0].Success)
	assert.Equal(t, http.StatusOK, logs[0].StatusCode)
	assert.Equal(t, EventTaskCreated, logs[0].EventType)
	assert.JSONEq(t, string(got.body), logs[0].Payload)
}

func TestManagerOmitsProjectForGlobalEvents(t *testing.T) {
	st := newTestStore(t)
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	insertSubscription(t, st, srv.URL, []string{EventIndexReindexed}, "")
	m := newTestManager(t, st, Config{Enabled: true})

	m.Fire(EventIndexReindexed, "", map[string]any{"document_count": 42})

	select {
	case body := <-received:
		var env envelope
		require.NoError(t, json.Unmarshal(body, &env))
		assert.Nil(t, env.Project)
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery received")
	}
}

func TestManagerRecordsFailedDelivery(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	subID := insertSubscription(t, st, srv.URL, []string{EventWildcard}, "")
	m := newTestManager(t, st, Config{Enabled: true})

	m.Fire(EventDocCreated, "myapp", map[string]any{"filename": "notes.md"})

	require.Eventually(t, func() bool {
		return len(deliveryLogs(t, st, subID)) == 1
	}, 3*time.Second, 20*time.Millisecond)
	logs := deliveryLogs(t, st, subID)
	assert.False(t, logs[0].Success)
	assert.Equal(t, http.StatusInternalServerError, logs[0].StatusCode)
	assert.Contains(t, logs[0].ErrorMessage, "HTTP 500")
	assert.Contains(t, logs[0].ErrorMessage, "boom")
}

func TestManagerRecordsTimeout(t *testing.T) {
	st := newTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	subID := insertSubscription(t, st, srv.URL, []string{EventWildcard}, "")
	m := newTestManager(t, st, Config{Enabled: true, Timeout: 50 * time.Millisecond})

	m.Fire(EventSessionLogged, "myapp", nil)

	require.Eventually(t, func() bool {
		return len(deliveryLogs(t, st, subID)) == 1
	}, 3*time.Second, 20*time.Millisecond)
	logs := deliveryLogs(t, st, subID)
	assert.False(t, logs[0].Success)
	assert.Zero(t, logs[0].StatusCode)
	assert.Equal(t, "request timed out", logs[0].ErrorMessage)
}

func TestManagerSkipsNonMatchingSubscriptions(t *testing.T) {
	// Given one subscriber for task events and one for session events
	st := newTestStore(t)
	var sessionHits atomic.Int32
	sessionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionHits.Add(1)
	}))
	t.Cleanup(sessionSrv.Close)
	taskDelivered := make(chan struct{}, 1)
	taskSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		taskDelivered <- struct{}{}
	}))
	t.Cleanup(taskSrv.Close)
	insertSubscription(t, st, sessionSrv.URL, []string{EventSessionLogged}, "")
	insertSubscription(t, st, taskSrv.URL, []string{EventTaskCreated}, "")
	m := newTestManager(t, st, Config{Enabled: true})

	// When a task event fires
	m.Fire(EventTaskCreated, "myapp", nil)

	// Then only the task subscriber is called
	select {
	case <-taskDelivered:
	case <-time.After(3 * time.Second):
		t.Fatal("task subscriber not called")
	}
	assert.Zero(t, sessionHits.Load())
}

func TestManagerDisabledSkipsDelivery(t *testing.T) {
	st := newTestStore(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)
	insertSubscription(t, st, srv.URL, []string{EventWildcard}, "")
	m := newTestManager(t, st, Config{Enabled: false})

	m.Fire(EventTaskCreated, "myapp", nil)
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, hits.Load())
	assert.Empty(t, deliveryLogs(t, st, 0))
}

func TestRegisterValidatesInput(t *testing.T) {
	tests := []struct {
		name     string
		reg      Registration
		wantCode string
	}{
		{
			name: "unsafe url",
			reg: Registration{
				URL:        "http://localhost/hook",
				Secret:     testSecret,
				EventTypes: []string{EventTaskCreated},
			},
			wantCode: verrors.ErrCodeUnsafeURL,
		},
		{
			name: "short secret",
			reg: Registration{
				URL:        "https://example.com/hook",
				Secret:     "too-short",
				EventTypes: []string{EventTaskCreated},
			},
			wantCode: verrors.ErrCodeInvalidArgument,
		},
		{
			name: "no event types",
			reg: Registration{
				URL:    "https://example.com/hook",
				Secret: testSecret,
			},
			wantCode: verrors.ErrCodeInvalidArgument,
		},
		{
			name: "unknown event type",
			reg: Registration{
				URL:        "https://example.com/hook",
				Secret:     testSecret,
				EventTypes: []string{"task.exploded"},
			},
			wantCode: verrors.ErrCodeInvalidArgument,
		},
	}

	st := newTestStore(t)
	m := newTestManager(t, st, Config{Enabled: true})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Register(context.Background(), tt.reg)

			require.Error(t, err)
			assert.True(t, verrors.HasCode(err, tt.wantCode),
				"expected code %s, got %s", tt.wantCode, verrors.GetCode(err))
		})
	}
}

func TestRegisterEnforcesLimits(t *testing.T) {
	st := newTestStore(t)
	m := newTestManager(t, st, Config{Enabled: true, MaxPerProject: 1, MaxTotal: 2})
	ctx := context.Background()

	first, err := m.Register(ctx, Registration{
		URL: "https://example.com/a", Secret: testSecret,
		EventTypes: []string{EventWildcard}, Project: "alpha",
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	// The per-project cap rejects a second alpha subscription.
	_, err = m.Register(ctx, Registration{
		URL: "https://example.com/b", Secret: testSecret,
		EventTypes: []string{EventWildcard}, Project: "alpha",
	})
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeLimitExceeded))
	assert.Contains(t, err.Error(), "alpha")

	_, err = m.Register(ctx, Registration{
		URL: "https://example.com/c", Secret: testSecret,
		EventTypes: []string{EventWildcard}, Project: "beta",
	})
	require.NoError(t, err)

	// The total cap rejects a third subscription in any project.
	_, err = m.Register(ctx, Registration{
		URL: "https://example.com/d", Secret: testSecret,
		EventTypes: []string{EventWildcard}, Project: "gamma",
	})
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeLimitExceeded))
}

func TestUnregisterRemovesSubscription(t *testing.T) {
	st := newTestStore(t)
	m := newTestManager(t, st, Config{Enabled: true})
	ctx := context.Background()
	sub, err := m.Register(ctx, Registration{
		URL: "https://example.com/hook", Secret: testSecret,
		EventTypes: []string{EventTaskCreated},
	})
	require.NoError(t, err)

	require.NoError(t, m.Unregister(ctx, sub.ID))

	err = m.Unregister(ctx, sub.ID)
	require.Error(t, err)
	assert.True(t, verrors.IsNotFound(err))
}

func TestListHidesSecrets(t *testing.T) {
	st := newTestStore(t)
	m := newTestManager(t, st, Config{Enabled: true})
	ctx := context.Background()
	_, err := m.Register(ctx, Registration{
		URL: "https://example.com/a", Secret: testSecret,
		EventTypes: []string{EventWildcard},
	})
	require.NoError(t, err)
	_, err = m.Register(ctx, Registration{
		URL: "https://example.com/b", Secret: testSecret,
		EventTypes: []string{EventTaskCreated}, Project: "alpha",
	})
	require.NoError(t, err)

	all, err := m.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, sub := range all {
		assert.Empty(t, sub.Secret)
	}

	scoped, err := m.List(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "alpha", scoped[0].Project)
}

func TestCloseWaitsForPendingDeliveries(t *testing.T) {
	// Given a delivery blocked inside the subscriber
	st := newTestStore(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	subID := insertSubscription(t, st, srv.URL, []string{EventWildcard}, "")
	m, err := NewManager(st, Config{Enabled: true, Workers: 1})
	require.NoError(t, err)

	m.Fire(EventDocCreated, "myapp", nil)
	time.AfterFunc(200*time.Millisecond, func() { close(release) })

	// When the manager closes, it waits for the delivery to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	logs := deliveryLogs(t, st, subID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)

	// Closing again is a no-op and firing after close does not panic.
	require.NoError(t, m.Close(ctx))
	m.Fire(EventDocCreated, "myapp", nil)
}

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := NewManager(nil, Config{})
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, DefaultDeliveryTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxPerProject, cfg.MaxPerProject)
	assert.Equal(t, DefaultMaxTotal, cfg.MaxTotal)
	assert.False(t, cfg.Enabled)
}

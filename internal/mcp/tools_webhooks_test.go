package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecoding/vibemcp/internal/webhook"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// newWebhookServer extends a test env with a live webhook manager.
func newWebhookServer(t *testing.T, env *testEnv) *Server {
	t.Helper()
	mgr, err := webhook.NewManager(env.store, webhook.Config{Enabled: true, Workers: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, mgr.Close(ctx))
	})

	srv, err := NewServer(Deps{
		Config:   env.cfg,
		Store:    env.store,
		Indexer:  env.index,
		Reader:   env.reader,
		Writer:   env.writer,
		Webhooks: mgr,
	})
	require.NoError(t, err)
	return srv
}

func TestHandleRegisterWebhook_Disabled_ReturnsError(t *testing.T) {
	// Given: a server without a webhook manager
	srv := newTestServer(t)

	// When: registering a subscription
	_, _, err := srv.handleRegisterWebhook(context.Background(), nil, RegisterWebhookInput{
		URL:        "https://example.com/hook",
		Secret:     testSecret,
		EventTypes: []string{webhook.EventTaskCreated},
	})

	// Then: the request is rejected outright
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidRequest, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "disabled")
}

func TestHandleUnregisterWebhook_Disabled_ReturnsError(t *testing.T) {
	srv := newTestServer(t)

	_, _, err := srv.handleUnregisterWebhook(context.Background(), nil,
		UnregisterWebhookInput{SubscriptionID: 1})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidRequest, mcpErr.Code)
}

func TestHandleListWebhooks_Disabled_ReturnsEmptyList(t *testing.T) {
	// Given: a server without a webhook manager
	srv := newTestServer(t)

	// When: listing subscriptions
	_, out, err := srv.handleListWebhooks(context.Background(), nil, ListWebhooksInput{})

	// Then: no error, just an empty listing
	require.NoError(t, err)
	assert.Empty(t, out.Subscriptions)
	assert.NotNil(t, out.Subscriptions)
}

func TestHandleRegisterWebhook_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)

	_, out, err := srv.handleRegisterWebhook(context.Background(), nil, RegisterWebhookInput{
		URL:         "https://example.com/hook",
		Secret:      testSecret,
		EventTypes:  []string{webhook.EventTaskCreated, webhook.EventDocUpdated},
		Project:     "myapp",
		Description: "CI notifier",
	})

	require.NoError(t, err)
	assert.Equal(t, "registered", out.Status)
	assert.Positive(t, out.SubscriptionID)
	assert.Equal(t, "https://example.com/hook", out.URL)
	assert.Equal(t, []string{webhook.EventTaskCreated, webhook.EventDocUpdated}, out.EventTypes)
	assert.Equal(t, "myapp", out.Project)
}

func TestHandleRegisterWebhook_InvalidEventType_ReturnsInvalidParams(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)

	_, _, err := srv.handleRegisterWebhook(context.Background(), nil, RegisterWebhookInput{
		URL:        "https://example.com/hook",
		Secret:     testSecret,
		EventTypes: []string{"task.exploded"},
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleRegisterWebhook_UnsafeURL_ReturnsUnsafeURL(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)

	_, _, err := srv.handleRegisterWebhook(context.Background(), nil, RegisterWebhookInput{
		URL:        "http://169.254.169.254/latest/meta-data",
		Secret:     testSecret,
		EventTypes: []string{webhook.EventWildcard},
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeUnsafeURL, mcpErr.Code)
}

func TestHandleRegisterWebhook_ReadOnly_ReturnsPermissionDenied(t *testing.T) {
	// Given: a read-only server with webhooks enabled
	env := newTestEnv(t, nil)
	env.cfg.ReadOnly = true
	srv := newWebhookServer(t, env)

	// When: registering a subscription
	_, _, err := srv.handleRegisterWebhook(context.Background(), nil, RegisterWebhookInput{
		URL:        "https://example.com/hook",
		Secret:     testSecret,
		EventTypes: []string{webhook.EventWildcard},
	})

	// Then: the mutation is rejected
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodePermissionDenied, mcpErr.Code)
}

func TestHandleUnregisterWebhook_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)
	ctx := context.Background()

	_, reg, err := srv.handleRegisterWebhook(ctx, nil, RegisterWebhookInput{
		URL:        "https://example.com/hook",
		Secret:     testSecret,
		EventTypes: []string{webhook.EventWildcard},
	})
	require.NoError(t, err)

	_, out, err := srv.handleUnregisterWebhook(ctx, nil,
		UnregisterWebhookInput{SubscriptionID: reg.SubscriptionID})

	require.NoError(t, err)
	assert.Equal(t, "unregistered", out.Status)
	assert.Equal(t, reg.SubscriptionID, out.SubscriptionID)

	_, list, err := srv.handleListWebhooks(ctx, nil, ListWebhooksInput{})
	require.NoError(t, err)
	assert.Empty(t, list.Subscriptions)
}

func TestHandleUnregisterWebhook_Unknown_ReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)

	_, _, err := srv.handleUnregisterWebhook(context.Background(), nil,
		UnregisterWebhookInput{SubscriptionID: 9999})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeNotFound, mcpErr.Code)
}

func TestHandleListWebhooks_OmitsSecrets(t *testing.T) {
	// Given: a registered subscription
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)
	ctx := context.Background()

	_, _, err := srv.handleRegisterWebhook(ctx, nil, RegisterWebhookInput{
		URL:         "https://example.com/hook",
		Secret:      testSecret,
		EventTypes:  []string{webhook.EventTaskCreated},
		Description: "CI notifier",
	})
	require.NoError(t, err)

	// When: listing subscriptions
	_, out, err := srv.handleListWebhooks(ctx, nil, ListWebhooksInput{})

	// Then: the listing carries everything but the secret
	require.NoError(t, err)
	require.Len(t, out.Subscriptions, 1)
	sub := out.Subscriptions[0]
	assert.Equal(t, "https://example.com/hook", sub.URL)
	assert.Equal(t, []string{webhook.EventTaskCreated}, sub.EventTypes)
	assert.Equal(t, "CI notifier", sub.Description)
	assert.True(t, sub.Active)
}

func TestHandleListWebhooks_FiltersByProject(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := newWebhookServer(t, env)
	ctx := context.Background()

	for _, project := range []string{"alpha", "beta"} {
		_, _, err := srv.handleRegisterWebhook(ctx, nil, RegisterWebhookInput{
			URL:        "https://example.com/" + project,
			Secret:     testSecret,
			EventTypes: []string{webhook.EventWildcard},
			Project:    project,
		})
		require.NoError(t, err)
	}

	_, out, err := srv.handleListWebhooks(ctx, nil, ListWebhooksInput{Project: "alpha"})

	require.NoError(t, err)
	require.Len(t, out.Subscriptions, 1)
	assert.Equal(t, "https://example.com/alpha", out.Subscriptions[0].URL)
}

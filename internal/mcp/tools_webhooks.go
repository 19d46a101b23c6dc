package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	verrors "github.com/vibecoding/vibemcp/internal/errors"
	"github.com/vibecoding/vibemcp/internal/store"
	"github.com/vibecoding/vibemcp/internal/webhook"
)

// errWebhooksDisabled rejects registration when no manager is running.
var errWebhooksDisabled = &MCPError{
	Code:    ErrCodeInvalidRequest,
	Message: "Webhooks are disabled on this server.",
}

// handleRegisterWebhook stores a new subscription.
func (s *Server) handleRegisterWebhook(ctx context.Context, _ *mcp.CallToolRequest, input RegisterWebhookInput) (
	*mcp.CallToolResult,
	*RegisterWebhookOutput,
	error,
) {
	if s.webhooks == nil {
		return nil, nil, errWebhooksDisabled
	}
	if err := s.checkWritable(); err != nil {
		return nil, nil, MapError(err)
	}

	done := s.toolCall("register_webhook",
		slog.String("url", input.URL),
		slog.String("project", input.Project))

	sub, err := s.webhooks.Register(ctx, webhook.Registration{
		URL:         input.URL,
		Secret:      input.Secret,
		EventTypes:  input.EventTypes,
		Project:     input.Project,
		Description: input.Description,
	})
	if err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil, slog.Int64("subscription_id", sub.ID))

	return nil, &RegisterWebhookOutput{
		Status:         "registered",
		SubscriptionID: sub.ID,
		URL:            sub.URL,
		EventTypes:     sub.EventTypes,
		Project:        sub.Project,
	}, nil
}

// handleUnregisterWebhook removes a subscription by id.
func (s *Server) handleUnregisterWebhook(ctx context.Context, _ *mcp.CallToolRequest, input UnregisterWebhookInput) (
	*mcp.CallToolResult,
	*UnregisterWebhookOutput,
	error,
) {
	if s.webhooks == nil {
		return nil, nil, errWebhooksDisabled
	}
	if err := s.checkWritable(); err != nil {
		return nil, nil, MapError(err)
	}

	done := s.toolCall("unregister_webhook", slog.Int64("subscription_id", input.SubscriptionID))

	if err := s.webhooks.Unregister(ctx, input.SubscriptionID); err != nil {
		done(err)
		return nil, nil, MapError(err)
	}
	done(nil)

	return nil, &UnregisterWebhookOutput{
		Status:         "unregistered",
		SubscriptionID: input.SubscriptionID,
	}, nil
}

// handleListWebhooks lists subscriptions. With webhooks disabled the
// listing is simply empty.
func (s *Server) handleListWebhooks(ctx context.Context, _ *mcp.CallToolRequest, input ListWebhooksInput) (
	*mcp.CallToolResult,
	ListWebhooksOutput,
	error,
) {
	output := ListWebhooksOutput{Subscriptions: []SubscriptionInfo{}}
	if s.webhooks == nil {
		return nil, output, nil
	}

	done := s.toolCall("list_webhooks", slog.String("project", input.Project))

	subs, err := s.webhooks.List(ctx, input.Project)
	if err != nil {
		done(err)
		return nil, output, MapError(err)
	}
	for _, sub := range subs {
		output.Subscriptions = append(output.Subscriptions, toSubscriptionInfo(sub))
	}
	done(nil, slog.Int("subscription_count", len(output.Subscriptions)))
	return nil, output, nil
}

// checkWritable rejects webhook mutations in read-only mode.
func (s *Server) checkWritable() error {
	if s.cfg.ReadOnly {
		return verrors.PermissionError("server is in read-only mode", nil)
	}
	return nil
}

func toSubscriptionInfo(sub store.Subscription) SubscriptionInfo {
	return SubscriptionInfo{
		ID:          sub.ID,
		URL:         sub.URL,
		EventTypes:  sub.EventTypes,
		Project:     sub.Project,
		Active:      sub.Active,
		Description: sub.Description,
		CreatedAt:   sub.CreatedAt,
	}
}

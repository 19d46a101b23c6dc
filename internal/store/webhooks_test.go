package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func mustSubscription(t *testing.T, s *Store, sub *Subscription) int64 {
	t.Helper()
	id, err := s.CreateSubscription(context.Background(), sub)
	require.NoError(t, err)
	return id
}

func TestCreateAndListSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Given one global and one project-bound subscription
	globalID := mustSubscription(t, s, &Subscription{
		URL:         "https://hooks.example.com/all",
		Secret:      testSecret,
		EventTypes:  []string{"*"},
		Description: "firehose",
	})
	boundID := mustSubscription(t, s, &Subscription{
		URL:        "https://hooks.example.com/alpha",
		Secret:     testSecret,
		EventTypes: []string{"task.created", "task.updated"},
		Project:    "alpha",
	})

	// When listing everything
	subs, err := s.ListSubscriptions(ctx, "")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	// Then both rows round-trip
	assert.Equal(t, globalID, subs[0].ID)
	assert.Equal(t, "https://hooks.example.com/all", subs[0].URL)
	assert.Equal(t, testSecret, subs[0].Secret)
	assert.Equal(t, []string{"*"}, subs[0].EventTypes)
	assert.Empty(t, subs[0].Project)
	assert.True(t, subs[0].Active)
	assert.Equal(t, "firehose", subs[0].Description)
	assert.NotEmpty(t, subs[0].CreatedAt)

	assert.Equal(t, boundID, subs[1].ID)
	assert.Equal(t, []string{"task.created", "task.updated"}, subs[1].EventTypes)
	assert.Equal(t, "alpha", subs[1].Project)

	// And filtering by project returns only the bound one
	subs, err = s.ListSubscriptions(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, boundID, subs[0].ID)
}

func TestDeleteSubscriptionCascadesLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustSubscription(t, s, &Subscription{
		URL:        "https://hooks.example.com/vibe",
		Secret:     testSecret,
		EventTypes: []string{"doc.created"},
	})
	require.NoError(t, s.LogDelivery(ctx, &DeliveryLog{
		SubscriptionID: id,
		EventType:      "doc.created",
		EventID:        "evt-1",
		Payload:        `{"event_id":"evt-1"}`,
		StatusCode:     200,
		Success:        true,
	}))

	// When the subscription is deleted
	deleted, err := s.DeleteSubscription(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Then its delivery logs are gone and a second delete reports false
	logs, err := s.ListDeliveryLogs(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)

	deleted, err = s.DeleteSubscription(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSubscriptionsForEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	taskGlobal := mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/tasks", Secret: testSecret,
		EventTypes: []string{"task.created"},
	})
	alphaAll := mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/alpha", Secret: testSecret,
		EventTypes: []string{"*"}, Project: "alpha",
	})
	betaDocs := mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/beta", Secret: testSecret,
		EventTypes: []string{"doc.updated"}, Project: "beta",
	})

	tests := []struct {
		name      string
		eventType string
		project   string
		want      []int64
	}{
		{
			name:      "project event reaches global and project wildcard subs",
			eventType: "task.created",
			project:   "alpha",
			want:      []int64{taskGlobal, alphaAll},
		},
		{
			name:      "event type not subscribed anywhere",
			eventType: "session.logged",
			project:   "gamma",
			want:      nil,
		},
		{
			name:      "project-bound sub only sees its own project",
			eventType: "doc.updated",
			project:   "beta",
			want:      []int64{betaDocs},
		},
		{
			name:      "event without project skips project-bound subs",
			eventType: "doc.updated",
			project:   "",
			want:      nil,
		},
		{
			name:      "wildcard covers unknown event names",
			eventType: "index.reindexed",
			project:   "alpha",
			want:      []int64{alphaAll},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := s.SubscriptionsForEvent(ctx, tt.eventType, tt.project)
			require.NoError(t, err)

			var ids []int64
			for _, sub := range subs {
				ids = append(ids, sub.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCountActiveSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/1", Secret: testSecret, EventTypes: []string{"*"},
	})
	mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/2", Secret: testSecret, EventTypes: []string{"*"}, Project: "alpha",
	})
	mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/3", Secret: testSecret, EventTypes: []string{"*"}, Project: "alpha",
	})

	total, err := s.CountActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	forAlpha, err := s.CountActiveSubscriptionsForProject(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, forAlpha)

	forBeta, err := s.CountActiveSubscriptionsForProject(ctx, "beta")
	require.NoError(t, err)
	assert.Zero(t, forBeta)
}

func TestLogDeliveryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/vibe", Secret: testSecret, EventTypes: []string{"*"},
	})
	other := mustSubscription(t, s, &Subscription{
		URL: "https://hooks.example.com/other", Secret: testSecret, EventTypes: []string{"*"},
	})

	// Given a success, a failure, and a log for another subscription
	require.NoError(t, s.LogDelivery(ctx, &DeliveryLog{
		SubscriptionID: id, EventType: "task.created", EventID: "evt-1",
		Payload: `{"n":1}`, StatusCode: 200, Success: true,
	}))
	require.NoError(t, s.LogDelivery(ctx, &DeliveryLog{
		SubscriptionID: id, EventType: "task.updated", EventID: "evt-2",
		Payload: `{"n":2}`, ErrorMessage: "Request timed out",
	}))
	require.NoError(t, s.LogDelivery(ctx, &DeliveryLog{
		SubscriptionID: other, EventType: "doc.created", EventID: "evt-3",
		Payload: `{"n":3}`, StatusCode: 503, ErrorMessage: "HTTP 503: upstream unavailable",
	}))

	// When listing logs for the first subscription
	logs, err := s.ListDeliveryLogs(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// Then entries come back newest first with fields intact
	assert.Equal(t, "evt-2", logs[0].EventID)
	assert.False(t, logs[0].Success)
	assert.Zero(t, logs[0].StatusCode)
	assert.Equal(t, "Request timed out", logs[0].ErrorMessage)

	assert.Equal(t, "evt-1", logs[1].EventID)
	assert.True(t, logs[1].Success)
	assert.Equal(t, 200, logs[1].StatusCode)
	assert.Empty(t, logs[1].ErrorMessage)

	// And the unfiltered view sees every subscription, capped by limit
	all, err := s.ListDeliveryLogs(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
